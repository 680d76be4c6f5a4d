package aggregate

import "github.com/chebyrash/promise"

// Plugin is the unit of lifecycle management. Configs, clients and the
// devnet node all implement it and get wired together by an Aggregate.
type Plugin interface {
	// Runs initialization in order of how they are passed in to `Aggregate`
	Init() error
	// Runs startup and should be non blocking
	Start() *promise.Promise[any]
	// Runs cleanup once the `Aggregate` is finished
	Stop() error
}
