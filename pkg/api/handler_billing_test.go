package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/platform/ent/usageevent"
	"github.com/corpusforge/platform/pkg/billing"
	"github.com/corpusforge/platform/pkg/config"
	testdb "github.com/corpusforge/platform/test/database"
)

func billingTestEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.POST("/companies/:id/usage/reserve", s.reserveUsageHandler)
	return e
}

func TestReserveUsageHandler_InvalidCompanyID(t *testing.T) {
	s := &Server{}
	e := billingTestEcho(s)

	req := httptest.NewRequest(http.MethodPost, "/companies/not-a-number/usage/reserve", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveUsageHandler_WithinLimitReturnsOK(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	_, err = client.Subscription.Create().
		SetCompanyID(company.ID).
		SetTier("free").
		SetStatus("active").
		SetPeriodStart(time.Now().Add(-24 * time.Hour)).
		SetPeriodEnd(time.Now().Add(30 * 24 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)

	gate, err := billing.NewGate(client.Client, config.DefaultTierLimits())
	require.NoError(t, err)

	s := &Server{quotaGate: gate}
	e := billingTestEcho(s)

	body, err := json.Marshal(reserveUsageRequest{EventType: usageevent.EventTypeCellOperation, Quantity: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/companies/"+strconv.Itoa(company.ID)+"/usage/reserve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result billing.ReserveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Allowed)
	assert.NotZero(t, result.UsageEventID)
}

func TestReserveUsageHandler_SuspendedSubscriptionIsForbidden(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("suspended-co").SetSlug("suspended-co").Save(ctx)
	require.NoError(t, err)
	_, err = client.Subscription.Create().
		SetCompanyID(company.ID).
		SetTier("free").
		SetStatus("suspended").
		SetPeriodStart(time.Now().Add(-24 * time.Hour)).
		SetPeriodEnd(time.Now().Add(30 * 24 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)

	gate, err := billing.NewGate(client.Client, config.DefaultTierLimits())
	require.NoError(t, err)

	s := &Server{quotaGate: gate}
	e := billingTestEcho(s)

	body, err := json.Marshal(reserveUsageRequest{EventType: usageevent.EventTypeCellOperation, Quantity: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/companies/"+strconv.Itoa(company.ID)+"/usage/reserve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
