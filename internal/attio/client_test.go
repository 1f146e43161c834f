package attio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/httpretry"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	c.SetHTTPClient(httpretry.NewRetryClient(srv.Client(), 1))
	return c, srv
}

func TestGetOrCreateCompanyFindsByDomain(t *testing.T) {
	var queries int
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/objects/companies/records/query" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		queries++
		var body struct {
			Filter map[string]any `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding query: %v", err)
		}
		if body.Filter["value"] != "acme.test" {
			t.Errorf("expected domain filter acme.test, got %v", body.Filter["value"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": map[string]string{"record_id": "rec-1"}},
			},
		})
	}))
	defer srv.Close()

	rec, err := c.GetOrCreateCompany(context.Background(), CompanyInput{Name: "Acme", Website: "https://www.acme.test/about"})
	if err != nil {
		t.Fatalf("GetOrCreateCompany: %v", err)
	}
	if rec.ID.RecordID != "rec-1" {
		t.Errorf("expected rec-1, got %s", rec.ID.RecordID)
	}
	if queries != 1 {
		t.Errorf("expected a single query, got %d", queries)
	}
}

func TestGetOrCreateCompanyCreatesWhenMissing(t *testing.T) {
	var created map[string]any
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/objects/companies/records/query":
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case "/objects/companies/records":
			var body struct {
				Data struct {
					Values map[string]any `json:"values"`
				} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding create: %v", err)
			}
			created = body.Data.Values
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"id": map[string]string{"record_id": "rec-new"}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rec, err := c.GetOrCreateCompany(context.Background(), CompanyInput{Name: "Globex", Website: "globex.test"})
	if err != nil {
		t.Fatalf("GetOrCreateCompany: %v", err)
	}
	if rec.ID.RecordID != "rec-new" {
		t.Errorf("expected rec-new, got %s", rec.ID.RecordID)
	}
	if created == nil {
		t.Fatal("expected a create call")
	}
	if _, ok := created["domains"]; !ok {
		t.Error("expected created company to carry domains")
	}
}

func TestGetOrCreatePersonLinksCompany(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/objects/people/records/query":
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case "/objects/people/records":
			var body struct {
				Data struct {
					Values map[string]json.RawMessage `json:"values"`
				} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding create: %v", err)
			}
			if _, ok := body.Data.Values["companies"]; !ok {
				t.Error("expected person create to link the company")
			}
			if _, ok := body.Data.Values["email_addresses"]; !ok {
				t.Error("expected person create to carry the email")
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"id": map[string]string{"record_id": "person-1"}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rec, err := c.GetOrCreatePerson(context.Background(), PersonInput{
		Email: "Ana@Acme.test", FirstName: "Ana", LastName: "Almeida",
	}, "rec-1")
	if err != nil {
		t.Fatalf("GetOrCreatePerson: %v", err)
	}
	if rec.ID.RecordID != "person-1" {
		t.Errorf("expected person-1, got %s", rec.ID.RecordID)
	}
}

func TestGetListCachesLookups(t *testing.T) {
	var calls int
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": map[string]string{"list_id": "list-1"}, "name": "Digital Outreach"},
			},
		})
	}))
	defer srv.Close()

	for i := 0; i < 3; i++ {
		l, err := c.GetList(context.Background(), "Digital Outreach")
		if err != nil {
			t.Fatalf("GetList: %v", err)
		}
		if l.ID.ListID != "list-1" {
			t.Errorf("expected list-1, got %s", l.ID.ListID)
		}
	}
	if calls != 1 {
		t.Errorf("expected one lists call, got %d", calls)
	}

	c.InvalidateCache()
	if _, err := c.GetList(context.Background(), "Digital Outreach"); err != nil {
		t.Fatalf("GetList after invalidate: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected a refetch after invalidate, got %d calls", calls)
	}
}

func TestStatusIDResolvesOptions(t *testing.T) {
	var calls int
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/list-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"attributes": []map[string]any{
					{
						"type": "status",
						"config": map[string]any{
							"options": []map[string]any{
								{"id": "st-1", "title": "Email Sent"},
								{"id": "st-2", "title": "Interested Reply"},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	id, err := c.StatusID(context.Background(), "list-1", "Interested Reply")
	if err != nil {
		t.Fatalf("StatusID: %v", err)
	}
	if id != "st-2" {
		t.Errorf("expected st-2, got %s", id)
	}

	// Sibling options land in the cache from the same fetch.
	id, err = c.StatusID(context.Background(), "list-1", "Email Sent")
	if err != nil {
		t.Fatalf("StatusID: %v", err)
	}
	if id != "st-1" {
		t.Errorf("expected st-1, got %s", id)
	}
	if calls != 1 {
		t.Errorf("expected one list fetch, got %d", calls)
	}
}

func TestStatusIDUnknownTitle(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"attributes": []any{}}})
	}))
	defer srv.Close()

	if _, err := c.StatusID(context.Background(), "list-1", "Nonexistent"); err == nil {
		t.Fatal("expected error for unknown status title")
	}
}

func TestSyncReplyAddsNoteAndAdvancesStage(t *testing.T) {
	var notes, statusUpdates int
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/objects/people/records/query":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{
						"id": map[string]string{"record_id": "person-1"},
						"values": map[string]any{
							"companies": []map[string]any{
								{"target_object": "companies", "target_record_id": "rec-1"},
							},
						},
					},
				},
			})
		case r.URL.Path == "/notes":
			notes++
			w.Write([]byte(`{}`))
		case r.URL.Path == "/lists":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": map[string]string{"list_id": "list-1"}, "name": "Digital Outreach"},
				},
			})
		case r.URL.Path == "/lists/list-1/entries" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": map[string]string{"list_id": "list-1", "entry_id": "entry-1"}, "target_record_id": "rec-1"},
				},
			})
		case r.URL.Path == "/lists/list-1":
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"attributes": []map[string]any{
						{
							"type": "status",
							"config": map[string]any{
								"options": []map[string]any{
									{"id": "st-2", "title": "Interested Reply"},
								},
							},
						},
					},
				},
			})
		case r.URL.Path == "/lists/list-1/entries/entry-1" && r.Method == http.MethodPatch:
			statusUpdates++
			w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	syncer := NewSyncer(c, "Digital Outreach")
	err := syncer.SyncReply(context.Background(), message.CanonicalMessage{
		Kind:          message.KindReply,
		From:          "ana@acme.test",
		Subject:       "Re: Quick question",
		ReplyCategory: "Interested",
		Reply:         message.Body{Text: "Let's talk next week."},
	})
	if err != nil {
		t.Fatalf("SyncReply: %v", err)
	}
	if notes != 1 {
		t.Errorf("expected one note, got %d", notes)
	}
	if statusUpdates != 1 {
		t.Errorf("expected one stage update, got %d", statusUpdates)
	}
}

func TestSyncReplyNeutralCategorySkipsStage(t *testing.T) {
	var statusUpdates int
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/objects/people/records/query":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"id": map[string]string{"record_id": "person-1"}},
				},
			})
		case "/notes":
			w.Write([]byte(`{}`))
		default:
			statusUpdates++
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	syncer := NewSyncer(c, "Digital Outreach")
	err := syncer.SyncReply(context.Background(), message.CanonicalMessage{
		Kind:          message.KindReply,
		From:          "ana@acme.test",
		Subject:       "Re: Quick question",
		ReplyCategory: "Out Of Office",
		Reply:         message.Body{Text: "Back next month."},
	})
	if err != nil {
		t.Fatalf("SyncReply: %v", err)
	}
	if statusUpdates != 0 {
		t.Errorf("expected no stage update, got %d", statusUpdates)
	}
}
