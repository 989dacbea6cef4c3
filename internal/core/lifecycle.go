package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Lifecycle hooks a module may implement. App drives them in this order:
//
//	LoadModules: New → Configure → Provision → Validate
//	Start          (registration order)
//	Reload         (on SIGHUP or a config file change)
//	Stop           (reverse order; Unload also stops modules never started)

// Configurable receives the module's entry under modules: in the config
// file. It is skipped when the file has no entry for the module, so zero
// values must be usable defaults.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner acquires resources and publishes services. The store opens
// and migrates its database here, so services exist before any Start.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator checks the configured and provisioned state without side effects.
type Validator interface {
	Validate() error
}

// Starter begins background work such as the gateway listener, the queue
// worker and the cron scheduler. Only started modules are stopped by
// App.Stop.
type Starter interface {
	Start() error
}

// Stopper releases what Provision and Start acquired. It must tolerate
// being called on a module that never started.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader applies a fresh set of module configs from ctx while running.
type Reloader interface {
	Reload(ctx *AppContext) error
}
