package appmgr

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/joeycumines/logiface"
)

// mockPort is an in-memory OSPort with failure injection and call
// accounting, sufficient to drive every creation and teardown path.
type mockPort struct {
	mu sync.Mutex

	nextModule ModuleHandle
	nextTask   TaskHandle
	nextObject ObjectID

	// taskIndexMod is the modulus for TaskIndex; defaults to the manager's
	// default task table size. Shrinking it forces task slot collisions.
	taskIndexMod int

	modules    map[ModuleHandle]string // handle -> path, present while loaded
	loadErr    map[string]error        // by path
	loadCalls  int
	unloads    []ModuleHandle
	unloadErr  map[ModuleHandle]error
	symbols    map[string]EntryAddress
	taskErr    error // non-nil fails the next TaskCreate
	tasks      map[TaskHandle]string
	taskDelErr map[TaskHandle]error
	taskDels   []TaskHandle
	objects    []*mockObject
	initErr    map[EntryAddress]error
	initSlots  []int
	scripts    map[string]string
}

type mockObject struct {
	id      ObjectID
	kind    ObjKind
	owner   TaskHandle
	deleted bool
	stuck   bool // DeleteObject fails forever
}

func newMockPort() *mockPort {
	return &mockPort{
		nextModule:   6, // first load returns handle 7
		taskIndexMod: DefaultTaskTableSize,
		modules:      make(map[ModuleHandle]string),
		loadErr:      make(map[string]error),
		unloadErr:    make(map[ModuleHandle]error),
		symbols:      map[string]EntryAddress{"Main": 0xDEAD},
		tasks:        make(map[TaskHandle]string),
		taskDelErr:   make(map[TaskHandle]error),
		initErr:      make(map[EntryAddress]error),
		scripts:      make(map[string]string),
	}
}

func (p *mockPort) ModuleLoad(name, path string) (ModuleHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadCalls++
	if err := p.loadErr[path]; err != nil {
		return 0, err
	}
	p.nextModule++
	p.modules[p.nextModule] = path
	return p.nextModule, nil
}

func (p *mockPort) ModuleUnload(handle ModuleHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloads = append(p.unloads, handle)
	if err := p.unloadErr[handle]; err != nil {
		return err
	}
	if _, ok := p.modules[handle]; !ok {
		return fmt.Errorf("module %d not loaded", handle)
	}
	delete(p.modules, handle)
	return nil
}

func (p *mockPort) ModuleInfo(handle ModuleHandle) (ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.modules[handle]; !ok {
		return ModuleInfo{}, fmt.Errorf("module %d not loaded", handle)
	}
	return ModuleInfo{
		Valid:       true,
		CodeAddress: 0x1000 * uint64(handle),
		CodeSize:    0x800,
		DataAddress: 0x2000 * uint64(handle),
		DataSize:    0x400,
		BSSAddress:  0x3000 * uint64(handle),
		BSSSize:     0x200,
	}, nil
}

func (p *mockPort) SymbolLookup(name string) (EntryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if addr, ok := p.symbols[name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("symbol %q not found", name)
}

func (p *mockPort) TaskCreate(name string, entry EntryAddress, stackSize uint32, priority uint16, fpEnabled bool) (TaskHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.taskErr != nil {
		err := p.taskErr
		p.taskErr = nil
		return 0, err
	}
	p.nextTask++
	p.tasks[p.nextTask] = name
	return p.nextTask, nil
}

func (p *mockPort) TaskDelete(handle TaskHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.taskDels = append(p.taskDels, handle)
	if err := p.taskDelErr[handle]; err != nil {
		return err
	}
	delete(p.tasks, handle)
	return nil
}

func (p *mockPort) TaskIndex(handle TaskHandle) (int, error) {
	if handle == 0 {
		return 0, fmt.Errorf("invalid task handle")
	}
	return int(handle) % p.taskIndexMod, nil
}

func (p *mockPort) LibraryInit(entry EntryAddress, slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initSlots = append(p.initSlots, slot)
	return p.initErr[entry]
}

func (p *mockPort) ForEachObject(owner TaskHandle, fn func(id ObjectID, kind ObjKind)) {
	p.mu.Lock()
	var snapshot []*mockObject
	for _, o := range p.objects {
		if o.owner == owner && !o.deleted {
			snapshot = append(snapshot, o)
		}
	}
	p.mu.Unlock()
	for _, o := range snapshot {
		fn(o.id, o.kind)
	}
}

func (p *mockPort) IdentifyObject(id ObjectID) ObjKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range p.objects {
		if o.id == id {
			return o.kind
		}
	}
	return ObjUnknown
}

func (p *mockPort) DeleteObject(id ObjectID, kind ObjKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range p.objects {
		if o.id == id && !o.deleted {
			if o.stuck {
				return fmt.Errorf("%s %d refuses to delete", kind, id)
			}
			o.deleted = true
			return nil
		}
	}
	return fmt.Errorf("object %d not found", id)
}

func (p *mockPort) OpenScript(path string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scripts[path]
	if !ok {
		return nil, fmt.Errorf("script %s not found", path)
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

// addObject registers an OS object owned by the given task.
func (p *mockPort) addObject(owner TaskHandle, kind ObjKind, stuck bool) ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextObject++
	p.objects = append(p.objects, &mockObject{
		id:    p.nextObject,
		kind:  kind,
		owner: owner,
		stuck: stuck,
	})
	return p.nextObject
}

func (p *mockPort) liveObjects(owner TaskHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, o := range p.objects {
		if o.owner == owner && !o.deleted {
			n++
		}
	}
	return n
}

func (p *mockPort) unloadCount(handle ModuleHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.unloads {
		if h == handle {
			n++
		}
	}
	return n
}

// recEvent is a minimal logiface.Event implementation recording structured
// notifications for assertions.
type recEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
	msg    string
}

func (e *recEvent) Level() logiface.Level        { return e.level }
func (e *recEvent) AddField(key string, val any) { e.fields[key] = val }
func (e *recEvent) AddMessage(msg string) bool   { e.msg = msg; return true }

type capturedEvent struct {
	level  logiface.Level
	fields map[string]any
	msg    string
}

func (c capturedEvent) tag() string {
	s, _ := c.fields["event"].(string)
	return s
}

type eventRecorder struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (r *eventRecorder) snapshot() []capturedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedEvent(nil), r.events...)
}

func (r *eventRecorder) countTag(tag string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.tag() == tag {
			n++
		}
	}
	return n
}

func newTestLogger() (*logiface.Logger[logiface.Event], *eventRecorder) {
	rec := &eventRecorder{}
	logger := logiface.New[*recEvent](
		logiface.WithEventFactory[*recEvent](logiface.EventFactoryFunc[*recEvent](func(level logiface.Level) *recEvent {
			return &recEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*recEvent](logiface.WriterFunc[*recEvent](func(e *recEvent) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, capturedEvent{level: e.level, fields: e.fields, msg: e.msg})
			return nil
		})),
	)
	return logger.Logger(), rec
}

// newTestManager builds a manager over a fresh mock port with a recording
// event sink and an in-memory syslog.
func newTestManager(t interface{ Fatal(args ...any) }, opts ...Option) (*Manager, *mockPort, *eventRecorder) {
	port := newMockPort()
	logger, rec := newTestLogger()
	opts = append([]Option{WithLogger(logger), WithSysLog(io.Discard)}, opts...)
	m, err := New(port, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return m, port, rec
}
