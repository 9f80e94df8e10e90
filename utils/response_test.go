package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kataras/iris/v12"
)

type pagedBody struct {
	Data  []string          `json:"data"`
	Meta  PageMeta          `json:"meta"`
	Links map[string]string `json:"links"`
}

func servePage(t *testing.T, page, perPage int, total int64) pagedBody {
	t.Helper()
	app := iris.New()
	app.Get("/api/statement", func(ctx iris.Context) {
		JSONPage(ctx, []string{"a", "b"}, page, perPage, total)
	})
	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/statement", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	var body pagedBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestJSONPageLinks(t *testing.T) {
	body := servePage(t, 2, 25, 60)

	if body.Meta.Page != 2 || body.Meta.PerPage != 25 || body.Meta.Total != 60 {
		t.Fatalf("meta = %+v", body.Meta)
	}
	if body.Meta.TotalPages != 3 {
		t.Fatalf("total_pages = %d", body.Meta.TotalPages)
	}
	if body.Links["prev"] != "/api/statement?page=1&per_page=25" {
		t.Errorf("prev = %q", body.Links["prev"])
	}
	if body.Links["next"] != "/api/statement?page=3&per_page=25" {
		t.Errorf("next = %q", body.Links["next"])
	}
}

func TestJSONPageBoundaries(t *testing.T) {
	first := servePage(t, 1, 25, 30)
	if _, ok := first.Links["prev"]; ok {
		t.Error("first page should have no prev link")
	}
	if _, ok := first.Links["next"]; !ok {
		t.Error("first page of two should have a next link")
	}

	last := servePage(t, 2, 25, 30)
	if _, ok := last.Links["next"]; ok {
		t.Error("last page should have no next link")
	}
}
