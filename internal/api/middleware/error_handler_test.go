package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "domainhub.io/hubd/internal/pkg/errors"
	"domainhub.io/hubd/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

func TestErrorHandler_NoErrors(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestErrorHandler_AppError(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrDomainAlreadyAssigned(42))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["code"] != apperrors.CodeDomainAlreadyAssigned {
		t.Errorf("code = %v, want %v", body["code"], apperrors.CodeDomainAlreadyAssigned)
	}
}

func TestErrorHandler_LockHeldCarriesParams(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/locked", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrLockHeld("bob"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/locked", nil)
	router.ServeHTTP(w, req)

	var body struct {
		Code   string                 `json:"code"`
		Params map[string]interface{} `json:"params"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Params["by"] != "bob" {
		t.Errorf("params.by = %v, want bob", body.Params["by"])
	}
}

func TestErrorHandler_UnknownError(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("something broke"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
