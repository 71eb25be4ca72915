package handler_test

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"inspekta/internal/booking/models"
	"inspekta/internal/creditpass"
	"inspekta/internal/identity"
	"inspekta/internal/ledger"
	"inspekta/internal/settlement/handler"
	"inspekta/internal/settlement/handler/mocks"
	"inspekta/pkg/domain"
	dErrors "inspekta/pkg/domain-errors"
)

const signingKey = "test-signing-key"

var creditPassFixture = creditpass.CreditPass{
	ID:           domain.NewPassID(),
	ClientRef:    "client-1",
	TotalCredits: 5,
	Remaining:    5,
}

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	jwt     *identity.JWTService
	now     time.Time
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.now = time.Now().UTC().Truncate(time.Second)
	s.jwt = identity.NewJWTService(signingKey, "inspekta", "inspekta")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.New(s.service, logger, s.jwt, 5, 30*24*time.Hour)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) request(method, path string, body any, role string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := s.jwt.GenerateToken("caller-1", role, time.Hour)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) booking() *models.Booking {
	return &models.Booking{
		ID:           domain.NewBookingID(),
		Code:         "MEA-7XK2",
		ClientRef:    "client-1",
		AgentRef:     "agent-1",
		PropertyRef:  "property-1",
		InspectionAt: s.now.Add(48 * time.Hour),
		Fee:          domain.NGN(250000),
		FeeBucket:    models.FeeBucketPending,
		CreatedAt:    s.now,
	}
}

func (s *HandlerSuite) TestAuth() {
	s.Run("requests without a token are rejected", func() {
		w := s.request(http.MethodPost, "/bookings", map[string]any{}, "")
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("requests with a garbage token are rejected", func() {
		req := httptest.NewRequest(http.MethodGet, "/clients/client-1/pass", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *HandlerSuite) TestCreateBooking() {
	s.Run("valid request creates a booking", func() {
		b := s.booking()
		s.service.EXPECT().
			CreateBooking(gomock.Any(), domain.ClientRef("client-1"), domain.AgentRef("agent-1"), domain.PropertyRef("property-1"), gomock.Any()).
			Return(b, nil)

		w := s.request(http.MethodPost, "/bookings", map[string]any{
			"client_ref":    "client-1",
			"agent_ref":     "agent-1",
			"property_ref":  "property-1",
			"inspection_at": s.now.Add(48 * time.Hour),
		}, "client")
		s.Require().Equal(http.StatusCreated, w.Code)

		var resp handler.BookingResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Equal(b.Code, resp.Code)
		s.Equal("scheduled", resp.Phase)
		s.Equal(int64(250000), resp.Fee.Amount)
	})

	s.Run("missing fields are a 400", func() {
		w := s.request(http.MethodPost, "/bookings", map[string]any{
			"client_ref": "client-1",
		}, "client")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("service conflict surfaces as 409", func() {
		s.service.EXPECT().
			CreateBooking(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "client already has an active booking for this property"))

		w := s.request(http.MethodPost, "/bookings", map[string]any{
			"client_ref":    "client-1",
			"agent_ref":     "agent-1",
			"property_ref":  "property-1",
			"inspection_at": s.now.Add(48 * time.Hour),
		}, "client")
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestVerifyCode() {
	s.Run("valid code returns the completed booking", func() {
		b := s.booking()
		b.CodeUsed = true
		b.FeeBucket = models.FeeBucketCertified
		s.service.EXPECT().
			VerifyCode(gomock.Any(), "MEA-7XK2").
			Return(b, nil)

		w := s.request(http.MethodPost, "/codes/verify", map[string]any{"code": "MEA-7XK2"}, "agent")
		s.Require().Equal(http.StatusOK, w.Code)

		var resp handler.BookingResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Equal("completed", resp.Phase)
	})

	s.Run("empty code is a 400", func() {
		w := s.request(http.MethodPost, "/codes/verify", map[string]any{"code": ""}, "agent")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unknown code is a 404", func() {
		s.service.EXPECT().
			VerifyCode(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no booking holds that code"))

		w := s.request(http.MethodPost, "/codes/verify", map[string]any{"code": "MEA-ZZZZ"}, "agent")
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestCancelBooking() {
	s.Run("valid cancel returns 204", func() {
		b := s.booking()
		s.service.EXPECT().
			CancelBooking(gomock.Any(), b.ID, models.CancelActorClient).
			Return(nil)

		w := s.request(http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", map[string]any{"by": "client"}, "client")
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("bad actor is a 400", func() {
		b := s.booking()
		w := s.request(http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", map[string]any{"by": "landlord"}, "client")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("malformed id is a 400", func() {
		w := s.request(http.MethodPost, "/bookings/not-a-uuid/cancel", map[string]any{"by": "client"}, "client")
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("lock window rejection is a 409", func() {
		b := s.booking()
		s.service.EXPECT().
			CancelBooking(gomock.Any(), b.ID, models.CancelActorClient).
			Return(dErrors.New(dErrors.CodeConflict, "booking is inside the 24-hour lock window"))

		w := s.request(http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", map[string]any{"by": "client"}, "client")
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestLedgerAndPass() {
	s.Run("ledger returns the four buckets", func() {
		s.service.EXPECT().
			Balances(gomock.Any(), domain.AgentRef("agent-1")).
			Return(ledger.Balances{
				Pending:      domain.NGN(250000),
				Locked:       domain.NGN(0),
				Certified:    domain.NGN(500000),
				Withdrawable: domain.NGN(100000),
			}, nil)

		w := s.request(http.MethodGet, "/agents/agent-1/ledger", nil, "agent")
		s.Require().Equal(http.StatusOK, w.Code)

		var resp handler.LedgerResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Equal(int64(250000), resp.Pending.Amount)
		s.Equal(int64(500000), resp.Certified.Amount)
		s.Equal(int64(100000), resp.Withdrawable.Amount)
	})

	s.Run("pass status", func() {
		s.service.EXPECT().
			PassStatus(gomock.Any(), domain.ClientRef("client-1")).
			Return(3, s.now.Add(24*time.Hour), nil)

		w := s.request(http.MethodGet, "/clients/client-1/pass", nil, "client")
		s.Require().Equal(http.StatusOK, w.Code)

		var resp handler.PassStatusResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Equal(3, resp.Remaining)
	})

	s.Run("issue pass applies platform defaults", func() {
		s.service.EXPECT().
			IssuePass(gomock.Any(), domain.ClientRef("client-1"), 5, 30*24*time.Hour).
			Return(&creditPassFixture, nil)

		w := s.request(http.MethodPost, "/clients/client-1/pass", map[string]any{}, "client")
		s.Equal(http.StatusCreated, w.Code)
	})
}

func (s *HandlerSuite) TestPromote() {
	s.Run("admin may promote", func() {
		s.service.EXPECT().
			Promote(gomock.Any(), domain.AgentRef("agent-1"), domain.NGN(100000)).
			Return(nil)

		w := s.request(http.MethodPost, "/agents/agent-1/promote", map[string]any{
			"amount":   100000,
			"currency": "ngn",
		}, "admin")
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("non-admin callers are rejected", func() {
		w := s.request(http.MethodPost, "/agents/agent-1/promote", map[string]any{
			"amount":   100000,
			"currency": "ngn",
		}, "agent")
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("non-positive amount is a 400", func() {
		w := s.request(http.MethodPost, "/agents/agent-1/promote", map[string]any{
			"amount":   0,
			"currency": "ngn",
		}, "admin")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}
