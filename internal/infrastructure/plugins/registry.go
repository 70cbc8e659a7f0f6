// Package plugins provides the named-plugin registry and lifecycle
// fan-out with per-plugin failure isolation.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
)

// Plugin declares optional lifecycle hooks. Nil hooks are skipped.
type Plugin struct {
	Name string

	OnInit          func() error
	OnPageView      func(page events.PageContext)
	OnEvent         func(ev events.Envelope)
	OnConversion    func(ev events.Envelope)
	OnPhoneClick    func(ev events.Envelope)
	OnConsentChange func(profileID string, state consent.State)
	OnError         func(err error)
	Destroy         func()
}

// Registry holds registered plugins and fans lifecycle notifications out
// to them. A failing plugin never prevents the others from running and
// never propagates to the caller.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	logger  *logging.ChanneledLogger
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(logger *logging.ChanneledLogger) *Registry {
	return &Registry{
		plugins: make(map[string]*Plugin),
		logger:  logger,
	}
}

// Register adds a plugin and runs its OnInit hook. Duplicate names are
// rejected.
func (r *Registry) Register(p *Plugin) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("plugin requires a name")
	}

	r.mu.Lock()
	if _, exists := r.plugins[p.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	r.mu.Unlock()

	if p.OnInit != nil {
		if err := r.safeInit(p); err != nil {
			r.reportError(p, fmt.Errorf("plugin %s init: %w", p.Name, err))
		}
	}

	if r.logger != nil {
		r.logger.Plugins().Info("Plugin registered", "plugin", p.Name)
	}
	return nil
}

// Unregister removes a plugin, running its Destroy hook.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	p, exists := r.plugins[name]
	if exists {
		delete(r.plugins, name)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}

	if p.Destroy != nil {
		r.safeHook(p, "destroy", func() { p.Destroy() })
	}

	if r.logger != nil {
		r.logger.Plugins().Info("Plugin unregistered", "plugin", name)
	}
	return true
}

// Get returns a registered plugin by name.
func (r *Registry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// List returns registered plugin names, sorted for stable output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotifyPageView fans a page view out to every plugin.
func (r *Registry) NotifyPageView(page events.PageContext) {
	for _, p := range r.snapshot() {
		if p.OnPageView != nil {
			hook := p.OnPageView
			r.safeHook(p, "page_view", func() { hook(page) })
		}
	}
}

// NotifyEvent fans a dispatched event out to every plugin.
func (r *Registry) NotifyEvent(ev events.Envelope) {
	for _, p := range r.snapshot() {
		if p.OnEvent != nil {
			hook := p.OnEvent
			r.safeHook(p, "event", func() { hook(ev) })
		}
	}
}

// NotifyConversion fans a conversion event out to every plugin.
func (r *Registry) NotifyConversion(ev events.Envelope) {
	for _, p := range r.snapshot() {
		if p.OnConversion != nil {
			hook := p.OnConversion
			r.safeHook(p, "conversion", func() { hook(ev) })
		}
	}
}

// NotifyPhoneClick fans a phone click out to every plugin.
func (r *Registry) NotifyPhoneClick(ev events.Envelope) {
	for _, p := range r.snapshot() {
		if p.OnPhoneClick != nil {
			hook := p.OnPhoneClick
			r.safeHook(p, "phone_click", func() { hook(ev) })
		}
	}
}

// NotifyConsentChange fans a consent update out to every plugin.
func (r *Registry) NotifyConsentChange(profileID string, state consent.State) {
	for _, p := range r.snapshot() {
		if p.OnConsentChange != nil {
			hook := p.OnConsentChange
			r.safeHook(p, "consent_change", func() { hook(profileID, state) })
		}
	}
}

func (r *Registry) snapshot() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// safeHook runs one plugin hook with panic containment.
func (r *Registry) safeHook(p *Plugin, hook string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("plugin %s panicked in %s hook: %v", p.Name, hook, rec)
			if r.logger != nil {
				r.logger.Plugins().Error("Plugin hook failed", "plugin", p.Name, "hook", hook, "error", fmt.Sprint(rec))
			}
			r.reportError(p, err)
		}
	}()
	fn()
}

func (r *Registry) safeInit(p *Plugin) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return p.OnInit()
}

// reportError hands the error to the plugin's own OnError hook with
// separate containment, never re-entering the notify pipeline.
func (r *Registry) reportError(p *Plugin, err error) {
	if p.OnError == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Plugins().Error("Plugin error handler panicked", "plugin", p.Name, "error", fmt.Sprint(rec))
			}
		}
	}()
	p.OnError(err)
}
