// Package provider shares the live preview server with the other pipelines.
//
// The orchestrator wraps the running server in a [Capability] and places it
// in each consumer pipeline's plugin list. Consumers find it again with
// [Locate] during their config phase. [Name] is the only discovery key both
// sides agree on.
package provider

import (
	"github.com/Iron-Ham/tandem/internal/pipeline"
)

// Name identifies the preview server capability in a plugin list.
const Name = "tandem:renderer-watch-server-provider"

// MessageFullReload asks every preview client to reload the page.
const MessageFullReload = "full-reload"

// Message is broadcast to connected preview clients as JSON.
type Message struct {
	Type string `json:"type"`
	// Path optionally limits a reload to pages under this path.
	Path string `json:"path,omitempty"`
}

// URLs are the addresses the preview server answers on. Local URLs use a
// loopback host; Network URLs use the machine's other interface addresses.
type URLs struct {
	Local   []string `json:"local" yaml:"local"`
	Network []string `json:"network" yaml:"network"`
}

// LocalURL returns the first local URL. The application child loads the
// renderer from this address, so network addresses do not qualify.
func (u *URLs) LocalURL() (string, bool) {
	if u == nil || len(u.Local) == 0 {
		return "", false
	}
	return u.Local[0], true
}

// First returns the first local URL, falling back to the first network URL.
func (u *URLs) First() (string, bool) {
	if u == nil {
		return "", false
	}
	if len(u.Local) > 0 {
		return u.Local[0], true
	}
	if len(u.Network) > 0 {
		return u.Network[0], true
	}
	return "", false
}

// API is what consumers may do with the preview server.
type API interface {
	// ResolvedURLs returns nil until the server is listening.
	ResolvedURLs() *URLs
	// Send broadcasts msg to every connected client.
	Send(msg Message) error
}

// Provider is a plugin list entry that carries the preview server.
type Provider interface {
	pipeline.Plugin
	API() API
}

// Capability is the Provider created by the orchestrator. It is immutable.
type Capability struct {
	name string
	api  API
}

// New wraps api in a Capability named Name.
func New(api API) *Capability {
	return &Capability{name: Name, api: api}
}

// Name implements pipeline.Plugin.
func (c *Capability) Name() string {
	return c.name
}

// API returns the wrapped preview server.
func (c *Capability) API() API {
	return c.api
}
