package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorDetail(rec, http.StatusBadRequest, "bad", "why")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Error != "bad" || body.Detail != "why" {
		t.Errorf("body = %+v", body)
	}
}

func TestQueryIntList(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []int
	}{
		{"missing", "", nil},
		{"single", "ids=4", []int{4}},
		{"multiple_with_spaces", "ids=1,%202%20,3", []int{1, 2, 3}},
		{"skips_garbage", "ids=1,x,3", []int{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/?"+tt.query, nil)
			got := QueryIntList(req, "ids")
			if len(got) != len(tt.want) {
				t.Fatalf("QueryIntList = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("QueryIntList[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPathInt(t *testing.T) {
	r := chi.NewRouter()
	var got int
	var gotErr error
	r.Get("/w/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathInt(r, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/w/42", nil))
	if gotErr != nil || got != 42 {
		t.Errorf("PathInt = %d, %v; want 42, nil", got, gotErr)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/w/abc", nil))
	if gotErr == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var v struct{ ID int }
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id":3}`))
		if err := DecodeJSON(httptest.NewRecorder(), req, &v); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if v.ID != 3 {
			t.Errorf("ID = %d, want 3", v.ID)
		}
	})

	t.Run("oversized_body", func(t *testing.T) {
		var v struct{ S string }
		big := `{"s":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(big))
		if err := DecodeJSON(httptest.NewRecorder(), req, &v); err == nil {
			t.Error("expected error for oversized body")
		}
	})
}
