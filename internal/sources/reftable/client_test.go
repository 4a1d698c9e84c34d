package reftable

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/ownersync/internal/transport"
	"github.com/agentstation/ownersync/pkg/errors"
)

func newTestClient(serverURL string) *Client {
	return New(transport.New(&transport.NoAuth{}, transport.WithContentType(transport.ContentTypeJSONAPI)), serverURL)
}

func TestTablesFollowsNextLink(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("page[limit]") == "100":
			fmt.Fprintf(w, `{
				"data":[{"id":"t1","attributes":{"table_name":"service_owners","description":"who owns what"}}],
				"links":{"next":%q}
			}`, server.URL+tablesPath+"?page[cursor]=next")
		case r.URL.Query().Get("page[cursor]") == "next":
			fmt.Fprint(w, `{"data":[{"id":"t2","attributes":{"name":"legacy_table"}}],"links":{}}`)
		default:
			t.Fatalf("unexpected request %s", r.URL)
		}
	}))
	defer server.Close()

	tables, err := newTestClient(server.URL).Tables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Table{
		{ID: "t1", Name: "service_owners", Description: "who owns what"},
		{ID: "t2", Name: "legacy_table"},
	}, tables)
}

func TestFindTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"t1","attributes":{"table_name":"Service_Owners"}},
			{"id":"t2","attributes":{"table_name":"deploy_windows"}}
		],"links":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	t.Run("case-insensitive name match", func(t *testing.T) {
		id, err := client.FindTable(context.Background(), "service_owners")
		require.NoError(t, err)
		assert.Equal(t, "t1", id)
	})

	t.Run("match by id", func(t *testing.T) {
		id, err := client.FindTable(context.Background(), "T2")
		require.NoError(t, err)
		assert.Equal(t, "t2", id)
	})

	t.Run("not found lists available tables", func(t *testing.T) {
		_, err := client.FindTable(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Contains(t, err.Error(), "Service_Owners")
		assert.Contains(t, err.Error(), "deploy_windows")
	})
}

func TestLookupChunking(t *testing.T) {
	var chunkSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["row_id"]
		chunkSizes = append(chunkSizes, len(ids))

		fmt.Fprintf(w, `{"data":[{"id":%q,"attributes":{"values":{"service":%q,"team":"team 1"}}}]}`, ids[0], ids[0])
	}))
	defer server.Close()

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("svc-%03d", i)
	}

	store := newTestClient(server.URL).Rows("t1", "service", "team")
	mapping, err := store.Lookup(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 50}, chunkSizes)
	assert.Equal(t, "team 1", mapping["svc-000"])
	assert.Equal(t, "team 1", mapping["svc-100"])
	assert.Equal(t, "team 1", mapping["svc-200"])
}

func TestLookupValueBagAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "values alias",
			body: `{"data":[{"id":"a","attributes":{"values":{"service":"a","team":"team 1"}}}]}`,
			want: map[string]string{"a": "team 1"},
		},
		{
			name: "value alias",
			body: `{"data":[{"id":"a","attributes":{"value":{"service":"a","team":"team 2"}}}]}`,
			want: map[string]string{"a": "team 2"},
		},
		{
			name: "columns alias",
			body: `{"data":[{"id":"a","attributes":{"columns":{"service":"a","team":"team 3"}}}]}`,
			want: map[string]string{"a": "team 3"},
		},
		{
			name: "attributes fallback",
			body: `{"data":[{"id":"a","attributes":{"service":"a","team":"team 4"}}]}`,
			want: map[string]string{"a": "team 4"},
		},
		{
			name: "first non-empty alias wins",
			body: `{"data":[{"id":"a","attributes":{"values":{"service":"a","team":"first"},"columns":{"service":"a","team":"second"}}}]}`,
			want: map[string]string{"a": "first"},
		},
		{
			name: "empty service skipped",
			body: `{"data":[{"id":"a","attributes":{"values":{"service":"  ","team":"team 1"}}}]}`,
			want: map[string]string{},
		},
		{
			name: "whitespace trimmed",
			body: `{"data":[{"id":"a","attributes":{"values":{"service":" a ","team":" team 1 "}}}]}`,
			want: map[string]string{"a": "team 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			store := newTestClient(server.URL).Rows("t1", "service", "team")
			mapping, err := store.Lookup(context.Background(), []string{"a"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, mapping)
		})
	}
}

func TestLookupWholeChunkNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"meta":{"not_found":["a","b"]}}`)
	}))
	defer server.Close()

	store := newTestClient(server.URL).Rows("t1", "service", "team")
	mapping, err := store.Lookup(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestLookupMissingEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":["no such route"]}`)
	}))
	defer server.Close()

	store := newTestClient(server.URL).Rows("t1", "service", "team")
	_, err := store.Lookup(context.Background(), []string{"a"})
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestLookupUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := newTestClient(server.URL).Rows("t1", "service", "team")
	_, err := store.Lookup(context.Background(), []string{"a"})
	var authErr *errors.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

func TestLookupEmptyInput(t *testing.T) {
	store := newTestClient("http://unused.invalid").Rows("t1", "service", "team")
	mapping, err := store.Lookup(context.Background(), []string{"", ""})
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestCreateRow(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"created", http.StatusCreated, false},
		{"updated", http.StatusOK, false},
		{"conflict is success", http.StatusConflict, false},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				buf := make([]byte, r.ContentLength)
				r.Body.Read(buf)
				gotBody = string(buf)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			store := newTestClient(server.URL).Rows("t1", "service", "team")
			err := store.Create(context.Background(), "checkout", "team 1")

			if tt.wantErr {
				var apiErr *errors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.status, apiErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, gotBody, `"id":"checkout"`)
			assert.Contains(t, gotBody, `"type":"row"`)
			assert.Contains(t, gotBody, `"service":"checkout"`)
			assert.Contains(t, gotBody, `"team":"team 1"`)
		})
	}
}
