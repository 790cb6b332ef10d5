package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uofuseismo/cct-review/pkg/models"
)

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "analyst", ExpiresAt: jwt.NewNumericDate(exp)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func mag(v float64) *float64 { return &v }

func testEntry(id, origin string, status models.ReviewStatus) models.CatalogEntry {
	ts, err := time.Parse(models.CCTTimeFormat, origin)
	if err != nil {
		panic(err)
	}
	return models.CatalogEntry{
		EventIdentifier:            id,
		OriginTime:                 models.OriginTime{Time: ts},
		Latitude:                   40.5,
		Longitude:                  -111.9,
		Depth:                      7.25,
		AuthoritativeMagnitude:     mag(3.0),
		AuthoritativeMagnitudeType: "l",
		ReviewStatus:               status,
	}
}

func testDetailJSON(id string, cct float64) string {
	return `{"eventIdentifier":"` + id + `","cctMagnitude":` + jsonFloat(cct) + `,` +
		`"likelyPoorlyConstrained":false,` +
		`"spectralFit":{"fit":{"frequencies":[0.5,1.0],"values":[20.1,19.8]},` +
		`"bruneLowerBound-2":{"frequencies":[0.5],"values":[19.0]},` +
		`"bruneUpperBound-2":{"frequencies":[0.5],"values":[21.0]}},` +
		`"stationMeasurements":[{"station":"UU.CTU","measurements":[{"centerFrequency":1.0,"value":19.9,"residual":0.1}]}]}`
}

func jsonFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

// fakeCCT is an httptest stand-in for the CCT service.
type fakeCCT struct {
	token       string
	permissions string

	mu       sync.Mutex
	entries  []models.CatalogEntry
	details  map[string]string
	requests []string
}

func newFakeCCT(t *testing.T, token, permissions string) (*fakeCCT, *httptest.Server) {
	f := &fakeCCT{token: token, permissions: permissions, details: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCCT) requestTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeCCT) count(requestType string) int {
	n := 0
	for _, r := range f.requestTypes() {
		if r == requestType {
			n++
		}
	}
	return n
}

func (f *fakeCCT) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	authz := r.Header.Get("Authorization")

	if strings.HasPrefix(authz, "Basic ") {
		f.mu.Lock()
		f.requests = append(f.requests, "login")
		f.mu.Unlock()
		json.NewEncoder(w).Encode(models.LoginResponse{Status: "success", JSONWebToken: f.token, Permissions: f.permissions})
		return
	}
	if authz != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req models.APIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.RequestType)

	switch req.RequestType {
	case "cctData":
		b, _ := json.Marshal(f.entries)
		events := string(b)
		json.NewEncoder(w).Encode(models.CatalogResponse{Status: "success", Request: "cctData", Events: &events})
	case "eventData":
		data, ok := f.details[req.EventIdentifier]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(models.EventDataResponse{Status: "success", Request: "eventData", EventIdentifier: req.EventIdentifier, Data: &data})
	case "accept", "reject":
		status := models.ReviewAccepted
		if req.RequestType == "reject" {
			status = models.ReviewRejected
		}
		for i := range f.entries {
			if f.entries[i].EventIdentifier == req.EventIdentifier {
				f.entries[i].ReviewStatus = status
			}
		}
		json.NewEncoder(w).Encode(models.ActionResponse{Status: "success", Request: req.RequestType, EventIdentifier: req.EventIdentifier})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

// fakeService is an in-memory Service for unit tests.
type fakeService struct {
	mu          sync.Mutex
	entries     []models.CatalogEntry
	catalogErr  error
	details     map[string]*models.EventDetail
	detailErr   map[string]error
	block       map[string]chan struct{}
	action      *models.ActionResponse
	actionErr   error
	actionCalls int
	detailCalls int
}

func (f *fakeService) GetCatalog(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return append([]models.CatalogEntry(nil), f.entries...), nil
}

func (f *fakeService) GetEventData(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, []byte, error) {
	f.mu.Lock()
	f.detailCalls++
	wait := f.block[eventID]
	f.mu.Unlock()
	if wait != nil {
		// Ignores ctx so that superseded results still arrive.
		<-wait
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[eventID]; err != nil {
		return nil, nil, err
	}
	d, ok := f.details[eventID]
	if !ok {
		return nil, nil, errors.New("no such event")
	}
	raw, _ := json.Marshal(d)
	out := *d
	return &out, raw, nil
}

func (f *fakeService) Accept(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error) {
	return f.act(eventID)
}

func (f *fakeService) Reject(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error) {
	return f.act(eventID)
}

func (f *fakeService) act(eventID string) (*models.ActionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actionCalls++
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	if f.action != nil {
		return f.action, nil
	}
	return &models.ActionResponse{Status: "success", EventIdentifier: eventID}, nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
