package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"folio/internal/domain"
	"folio/internal/handler"
	"folio/internal/router"
	"folio/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSetup_RoutesAndAuth(t *testing.T) {
	catalogSvc := new(mocks.MockCatalogService)
	validator := new(mocks.MockTokenValidator)
	validator.On("Validate", "bad").Return(nil, domain.ErrUnauthorized)

	id := uuid.New()
	catalogSvc.On("GetDocument", mock.Anything, id).Return(&domain.Document{ID: id}, nil)

	r := router.Setup(
		zap.NewNop(),
		nil,
		validator,
		handler.NewRefineHandler(new(mocks.MockLayoutService), nil),
		handler.NewDocumentHandler(catalogSvc, nil),
		handler.NewHealthHandler(nil),
	)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+id.String(), http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+id.String(), http.NoBody)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = router.Setup(zap.NewNop(), nil, nil,
		handler.NewRefineHandler(new(mocks.MockLayoutService), nil),
		handler.NewDocumentHandler(catalogSvc, nil),
		handler.NewHealthHandler(nil),
	)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+id.String(), http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	catalogSvc.AssertExpectations(t)
}
