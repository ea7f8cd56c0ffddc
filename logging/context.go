package logging

import (
	"os"
	"sync"
)

// Context holds at most one shared Logger.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Get never constructs a logger; only Initialize does.
//   - Re-initializing replaces the stored logger without closing it.
type Context struct {
	mu     sync.RWMutex
	logger Logger
}

// NewContext returns an empty, uninitialized context.
func NewContext() *Context {
	return &Context{}
}

// DefaultContext is the process-wide context used by the package functions.
var DefaultContext = NewContext()

// Initialize stores l as the shared logger and returns it. A nil l installs
// a default console logger built from DefaultConfig.
func (c *Context) Initialize(l Logger) Logger {
	if l == nil {
		l = defaultLogger()
	}
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
	return l
}

// Get returns the shared logger or ErrUninitialized.
func (c *Context) Get() (Logger, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return nil, ErrUninitialized
	}
	return c.logger, nil
}

// MustGet is like Get but panics when the context is empty.
func (c *Context) MustGet() Logger {
	l, err := c.Get()
	if err != nil {
		panic(err)
	}
	return l
}

// IsInitialized reports whether a logger is stored.
func (c *Context) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger != nil
}

// Reset clears the stored logger. Calling it on an empty context is a no-op.
func (c *Context) Reset() {
	c.mu.Lock()
	c.logger = nil
	c.mu.Unlock()
}

func defaultLogger() Logger {
	l, err := New(DefaultConfig())
	if err != nil {
		return newConsoleLogger(os.Stdout)
	}
	return l
}

// Initialize sets the logger of DefaultContext.
func Initialize(l Logger) Logger { return DefaultContext.Initialize(l) }

// Get returns the logger of DefaultContext.
func Get() (Logger, error) { return DefaultContext.Get() }

// MustGet returns the logger of DefaultContext or panics.
func MustGet() Logger { return DefaultContext.MustGet() }

// IsInitialized reports whether DefaultContext holds a logger.
func IsInitialized() bool { return DefaultContext.IsInitialized() }

// Reset clears DefaultContext.
func Reset() { DefaultContext.Reset() }
