package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/AllenCortuna/omnhs-api/internal/models"
)

func rbacRouter(mw gin.HandlerFunc, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/students/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRBACAllowsRole(t *testing.T) {
	router := rbacRouter(RBAC(string(models.RoleAdmin)), &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/students/s1", nil))

	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRBACDeniesRole(t *testing.T) {
	router := rbacRouter(RBAC(string(models.RoleAdmin)), &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/students/s1", nil))

	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACSelfMatchesLinkedRecord(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, LinkedID: "s1"}
	router := rbacRouter(RBAC(string(models.RoleAdmin), "SELF"), claims)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/students/s1", nil))
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/students/s2", nil))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	router := rbacRouter(RBAC(string(models.RoleAdmin)), nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/students/s1", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
