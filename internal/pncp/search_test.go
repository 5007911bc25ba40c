package pncp

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

func publication(seq int, subject string) map[string]any {
	return map[string]any{
		"numeroControlePNCP":     "46068425000133-1-00000" + string(rune('0'+seq)) + "/2025",
		"objetoCompra":           subject,
		"modalidadeId":           6,
		"modalidadeNome":         "Pregão - Eletrônico",
		"valorTotalEstimado":     125000.5,
		"processo":               "PA 12/2025",
		"numeroCompra":           "9",
		"anoCompra":              2025,
		"sequencialCompra":       seq,
		"dataPublicacaoPncp":     "2025-03-10T09:30:00",
		"srp":                    true,
		"orgaoEntidade":          map[string]any{"cnpj": "46068425000133", "razaoSocial": "MUNICIPIO DE CAMPINAS"},
		"unidadeOrgao":           map[string]any{"ufSigla": "sp", "municipioNome": "Campinas", "nomeUnidade": "Secretaria de Obras"},
		"informacaoComplementar": nil,
	}
}

type fakePNCP struct {
	mu      sync.Mutex
	queries []string
	pages   map[string][]map[string]any
}

func (f *fakePNCP) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/contratacoes/publicacao" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		f.mu.Lock()
		f.queries = append(f.queries, q.Encode())
		f.mu.Unlock()

		key := q.Get("codigoModalidadeContratacao") + "/" + q.Get("pagina")
		data, ok := f.pages[key]
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		total := 0
		for k := range f.pages {
			if strings.HasPrefix(k, q.Get("codigoModalidadeContratacao")+"/") {
				total++
			}
		}
		page := 1
		if q.Get("pagina") == "2" {
			page = 2
		}

		body := map[string]any{
			"data":             data,
			"totalRegistros":   len(data) * total,
			"totalPaginas":     total,
			"numeroPagina":     page,
			"paginasRestantes": total - page,
			"empty":            false,
		}

		w.Header().Set("Content-Type", "application/json")
		if page == 2 {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			defer gz.Close()
			_ = json.NewEncoder(gz).Encode(body)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestSearch(t *testing.T) {
	fake := &fakePNCP{pages: map[string][]map[string]any{
		"6/1": {publication(1, "Pavimentação asfáltica"), publication(2, "Merenda escolar")},
		"6/2": {publication(3, "Limpeza urbana")},
		// Same publication seen under another modality is returned once.
		"8/1": {publication(1, "Pavimentação asfáltica")},
	}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := New(zap.NewNop())
	client.APIURL = server.URL

	to := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	records, err := client.Search(context.Background(), &SearchParams{
		To:         to,
		Since:      48 * time.Hour,
		Modalities: []int{ModalityPregaoEletronico, ModalityDispensa, ModalityConcorrenciaEletr},
		State:      "SP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"46068425000133-2025-1", "46068425000133-2025-2", "46068425000133-2025-3"}
	if got := records.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	first := records.Items[0]
	if first.StateCode != "SP" || first.OrganizationName != "MUNICIPIO DE CAMPINAS" || first.Modality != "Pregão - Eletrônico" {
		t.Fatalf("unexpected record: %+v", first)
	}
	if first.Value() != 125000.5 {
		t.Fatalf("unexpected value: %v", first.Value())
	}
	if !first.PublicationDate.Equal(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected publication date: %v", first.PublicationDate)
	}
	if first.URL != portalURL+"/46068425000133/2025/1" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.MetadataText(procurement.MetaObject) != "Pavimentação asfáltica" {
		t.Fatalf("unexpected metadata: %v", first.ExtraMetadata)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, raw := range fake.queries {
		if !strings.Contains(raw, "dataInicial=20250308") || !strings.Contains(raw, "dataFinal=20250310") {
			t.Fatalf("unexpected date range in %s", raw)
		}
		if !strings.Contains(raw, "uf=SP") || !strings.Contains(raw, "tamanhoPagina=50") {
			t.Fatalf("missing filters in %s", raw)
		}
		if strings.Contains(raw, "cnpj=") {
			t.Fatalf("empty params must not be sent: %s", raw)
		}
	}
	// 2 pages for modality 6, 1 for 8 and an empty answer for 4.
	if len(fake.queries) != 4 {
		t.Fatalf("expected 4 requests, got %d: %v", len(fake.queries), fake.queries)
	}
}

func TestSearchRespectsMaxPages(t *testing.T) {
	fake := &fakePNCP{pages: map[string][]map[string]any{
		"6/1": {publication(1, "Pavimentação asfáltica")},
		"6/2": {publication(2, "Merenda escolar")},
	}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := New(zap.NewNop())
	client.APIURL = server.URL
	client.MaxPages = 1

	records, err := client.Search(context.Background(), &SearchParams{Modalities: []int{ModalityPregaoEletronico}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", records.Len())
	}
}

func TestSearchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(zap.NewNop())
	client.APIURL = server.URL

	if _, err := client.Search(context.Background(), &SearchParams{Modalities: []int{ModalityPregaoEletronico}}); err == nil {
		t.Fatal("expected error on bad status")
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(zap.NewNop())
	client.APIURL = server.URL
	client.RetryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := client.Search(ctx, &SearchParams{Modalities: []int{ModalityPregaoEletronico}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records.Len() != 0 || calls.Load() != 2 {
		t.Fatalf("expected empty result after one retry, got %d records and %d calls", records.Len(), calls.Load())
	}
}

func TestSearchRejectsInvertedRange(t *testing.T) {
	client := New(zap.NewNop())
	_, err := client.Search(context.Background(), &SearchParams{
		From: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatal("expected error for inverted date range")
	}
}
