// Package compat checks that a server runs API and platform versions the
// client supports.
package compat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/saturnines/unraid-connect/pkg/config"
	"github.com/saturnines/unraid-connect/pkg/errors"
	"github.com/saturnines/unraid-connect/pkg/observability"
	"github.com/saturnines/unraid-connect/pkg/transport/graphql"
)

// VersionQuery fetches the platform and API versions.
const VersionQuery = `query { info { versions { core { unraid api } } } }`

// Querier runs a GraphQL operation and returns its data member.
type Querier interface {
	ExecuteRaw(ctx context.Context, req graphql.Request) (json.RawMessage, error)
}

// Gate compares server versions against configured minimums. It queries the
// server on every call.
type Gate struct {
	querier     Querier
	minAPI      string
	minPlatform string
	logger      *slog.Logger
	observer    observability.ClientObserver
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(o observability.ClientObserver) GateOption {
	return func(g *Gate) {
		if o != nil {
			g.observer = o
		}
	}
}

// NewGate builds a gate. Empty minimums fall back to the package defaults.
func NewGate(q Querier, minAPI, minPlatform string, opts ...GateOption) *Gate {
	if minAPI == "" {
		minAPI = config.DefaultMinAPIVersion
	}
	if minPlatform == "" {
		minPlatform = config.DefaultMinPlatformVersion
	}
	g := &Gate{
		querier:     q,
		minAPI:      minAPI,
		minPlatform: minPlatform,
		logger:      slog.Default(),
		observer:    observability.NoopClientObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Minimums returns the configured minimum API and platform versions.
func (g *Gate) Minimums() VersionPair {
	return VersionPair{API: g.minAPI, Platform: g.minPlatform}
}

type versionsEnvelope struct {
	Info struct {
		Versions struct {
			Core VersionPair `json:"core"`
		} `json:"versions"`
	} `json:"info"`
}

// Fetch queries the server versions without judging them.
func (g *Gate) Fetch(ctx context.Context) (VersionPair, error) {
	data, err := g.querier.ExecuteRaw(ctx, graphql.Request{Query: VersionQuery})
	if err != nil {
		return VersionPair{}, err
	}
	var env versionsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return VersionPair{}, errors.Wrap(err, errors.KindAPI, "", "decode version response")
	}
	return env.Info.Versions.Core, nil
}

// Check fetches the server versions and returns a version error when either
// is below its minimum or cannot be parsed.
func (g *Gate) Check(ctx context.Context) (VersionPair, error) {
	pair, err := g.Fetch(ctx)
	if err != nil {
		g.observer.Compatibility(observability.CompatResultError)
		return VersionPair{}, err
	}

	if err := g.Compare(pair); err != nil {
		g.observer.Compatibility(observability.CompatResultIncompatible)
		g.logger.WarnContext(ctx, "server version incompatible",
			"api", pair.API, "platform", pair.Platform, "error", err)
		return pair, err
	}

	g.observer.Compatibility(observability.CompatResultOK)
	g.logger.DebugContext(ctx, "server version compatible", "api", pair.API, "platform", pair.Platform)
	return pair, nil
}

// Compare checks pair against the gate minimums without I/O.
func (g *Gate) Compare(pair VersionPair) error {
	if err := checkComponent("API", pair.API, g.minAPI); err != nil {
		return err
	}
	return checkComponent("Unraid", pair.Platform, g.minPlatform)
}

func checkComponent(component, observed, minimum string) error {
	ok, parsed := AtLeast(observed, minimum)
	switch {
	case !parsed:
		return errors.New(errors.KindVersion, "",
			fmt.Sprintf("%s version %q cannot be parsed (minimum %s)", component, observed, minimum))
	case !ok:
		return errors.New(errors.KindVersion, "",
			fmt.Sprintf("%s version %s is below minimum %s", component, observed, minimum))
	}
	return nil
}
