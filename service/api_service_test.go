package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/storage"
)

func TestAPIService(t *testing.T) {
	c := qt.New(t)

	// Setup storage
	store := storage.New(memdb.New())
	defer store.Close()

	// Port 0 lets the OS choose an available port
	apiService := NewAPI(&api.APIConfig{Host: "127.0.0.1", Port: 0, Storage: store})
	c.Assert(apiService.Addr(), qt.IsNil)

	ctx := context.Background()
	err := apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	defer apiService.Stop()

	ping := func() int {
		resp, err := http.Get(fmt.Sprintf("http://%s%s", apiService.Addr(), api.PingEndpoint))
		c.Assert(err, qt.IsNil)
		resp.Body.Close()
		return resp.StatusCode
	}
	c.Assert(ping(), qt.Equals, http.StatusOK)

	// Test stopping and restarting
	apiService.Stop()
	c.Assert(apiService.Addr(), qt.IsNil)
	err = apiService.Start(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(ping(), qt.Equals, http.StatusOK)

	// Test starting an already running service
	err = apiService.Start(ctx)
	c.Assert(err, qt.ErrorMatches, "service already running")

	// the storage is still usable after the service is stopped
	apiService.Stop()
	_, err = store.ListPolls()
	c.Assert(err, qt.IsNil)

	_, err = api.New(&api.APIConfig{})
	c.Assert(err, qt.IsNotNil)
	c.Assert(NewAPI(&api.APIConfig{}).Start(ctx), qt.IsNotNil)
}
