package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	httpserver "github.com/solvdai/solvd/internal/http"
	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/services"
)

// ExampleServer serves a tax lookup from the embedded rate table.
func ExampleServer() {
	reg := services.NewRegistry(services.Options{})

	server, err := httpserver.NewServer(reg, logging.NewNop(), &httpserver.Config{
		Host: "localhost",
		Port: 9090,
	})
	if err != nil {
		panic(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tax/ca", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	fmt.Println(rec.Code, rec.Body.String())

	if err := server.Shutdown(context.Background()); err != nil {
		panic(err)
	}
	// Output: 200 {"state":"CA","rate":7.25}
}
