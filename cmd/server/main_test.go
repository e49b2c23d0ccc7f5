package main_test

import (
	"net/http"
	"os"
	"testing"

	"github.com/coletivobank/coletivo/pkg/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

// TestMain runs before any tests and applies globally for all tests in the package.
func TestMain(m *testing.M) {
	testutils.Quiet()
	os.Exit(m.Run())
}

type MainTestSuite struct {
	suite.Suite
	app *fiber.App
}

func TestMainTestSuite(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}

func (s *MainTestSuite) SetupTest() {
	s.app = testutils.NewEnv(s.T()).App(nil)
}

func (s *MainTestSuite) TestRootRoute() {
	resp := testutils.MakeRequest(s.app, http.MethodGet, "/", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *MainTestSuite) TestProtectedRoute_Unauthorized() {
	resp := testutils.MakeRequest(s.app, http.MethodGet, "/funds", "", "garbage")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *MainTestSuite) TestNotFoundRoute() {
	resp := testutils.MakeRequest(s.app, http.MethodGet, "/doesnotexist", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *MainTestSuite) TestLoginRoute_BadRequest() {
	resp := testutils.MakeRequest(s.app, http.MethodPost, "/auth/login", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
