package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type routing struct {
	targets   Target
	cfg       DigitalConfig
	resources []Resource
}

// Router is an in-process Coordinator. Resources are owned by name; the
// FM operations own them under their operation name and other subsystems
// can hold them through Reserve.
//
// Bluetooth link operations complete asynchronously after LinkSetup when
// it is non zero.
type Router struct {
	mtx      sync.Mutex
	log      *zap.SugaredLogger
	owners   map[Resource]string
	running  map[Operation]routing
	listener Listener

	// LinkSetup is the time a Bluetooth link takes to come up.
	LinkSetup time.Duration
}

// NewRouter returns a router with every resource free.
func NewRouter(log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Router{
		log:     log,
		owners:  map[Resource]string{},
		running: map[Operation]routing{},
	}
}

// SetListener registers the callback for pending operations.
func (r *Router) SetListener(l Listener) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.listener = l
}

// Reserve marks resources as held by owner. The resources already held by
// someone else are returned and left untouched.
func (r *Router) Reserve(owner string, res ...Resource) []Resource {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	busy := r.conflicts(owner, res)
	if len(busy) > 0 {
		return busy
	}
	for _, rs := range res {
		r.owners[rs] = owner
	}
	return nil
}

// Release frees the resources held by owner.
func (r *Router) Release(owner string, res ...Resource) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, rs := range res {
		if r.owners[rs] == owner {
			delete(r.owners, rs)
		}
	}
}

// Owner returns who holds the resource.
func (r *Router) Owner(res Resource) (string, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	owner, ok := r.owners[res]
	return owner, ok
}

// Running returns the targets of op when it is running.
func (r *Router) Running(op Operation) (Target, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	rt, ok := r.running[op]
	return rt.targets, ok
}

func (r *Router) conflicts(owner string, res []Resource) []Resource {
	var busy []Resource
	for _, rs := range res {
		if o, ok := r.owners[rs]; ok && o != owner {
			busy = append(busy, rs)
		}
	}
	return busy
}

func operationTargets(op Operation, targets Target) Target {
	switch op {
	case OpFMRx:
		return targets & RxTargets
	case OpFMOverSCO:
		return targets & TargetFMOverSCO
	case OpFMOverA2DP:
		return targets & TargetFMOverA2DP
	}
	return TargetNone
}

func operationResources(op Operation, targets Target) []Resource {
	res := operationTargets(op, targets).Resources()
	if op == OpFMRx {
		res = append(res, ResourceFMRxPath)
	}
	return res
}

func (r *Router) acquire(op Operation, targets Target, cfg DigitalConfig) (Result, []Resource) {
	owner := op.String()
	needed := operationResources(op, targets)
	if busy := r.conflicts(owner, needed); len(busy) > 0 {
		r.log.Infow("audio resources unavailable", "operation", owner, "resources", busy)
		return UnavailableResources, busy
	}

	if prev, ok := r.running[op]; ok {
		for _, rs := range prev.resources {
			delete(r.owners, rs)
		}
	}
	for _, rs := range needed {
		r.owners[rs] = owner
	}
	r.running[op] = routing{targets: operationTargets(op, targets), cfg: cfg, resources: needed}

	if op != OpFMRx && r.LinkSetup > 0 {
		r.completeLater(op)
		return Pending, nil
	}
	return Success, nil
}

// completeLater reports the link setup to the listener. The listener is
// never called from inside a Coordinator method.
func (r *Router) completeLater(op Operation) {
	delay := r.LinkSetup
	go func() {
		time.Sleep(delay)

		r.mtx.Lock()
		l := r.listener
		_, ok := r.running[op]
		r.mtx.Unlock()

		res := Success
		if !ok {
			res = Failed
		}
		if l != nil {
			l(op, res, nil)
		}
	}()
}

// StartOperation implements Coordinator.
func (r *Router) StartOperation(op Operation, targets Target, cfg DigitalConfig) (Result, []Resource) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if op < OpFMRx || op > OpFMOverA2DP {
		return NotSupported, nil
	}
	if _, ok := r.running[op]; ok {
		return Success, nil
	}
	return r.acquire(op, targets, cfg)
}

// StopOperation implements Coordinator.
func (r *Router) StopOperation(op Operation) Result {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	rt, ok := r.running[op]
	if !ok {
		return Success
	}
	for _, rs := range rt.resources {
		if r.owners[rs] == op.String() {
			delete(r.owners, rs)
		}
	}
	delete(r.running, op)
	return Success
}

// ChangeResource implements Coordinator.
func (r *Router) ChangeResource(op Operation, targets Target, cfg DigitalConfig) (Result, []Resource) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.running[op]; !ok {
		return Failed, nil
	}
	return r.acquire(op, targets, cfg)
}

// ChangeConfiguration implements Coordinator.
func (r *Router) ChangeConfiguration(op Operation, cfg DigitalConfig) Result {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	rt, ok := r.running[op]
	if !ok {
		return Failed
	}
	if err := cfg.Validate(); err != nil {
		r.log.Infow("audio configuration refused", "operation", op.String(), "error", err)
		return NotSupported
	}
	rt.cfg = cfg
	r.running[op] = rt
	return Success
}
