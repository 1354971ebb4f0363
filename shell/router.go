package shell

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Change is an input state change found by Router.Poll.
type Change struct {
	Name  string
	State bool
}

// Router dispatches inbound messages to bindings by command topic.
type Router struct {
	byTopic *xsync.MapOf[string, Binding]
	byName  *xsync.MapOf[string, Binding]
	inputs  []*InputShell
}

func NewRouter() *Router {
	return &Router{
		byTopic: xsync.NewMapOf[string, Binding](),
		byName:  xsync.NewMapOf[string, Binding](),
	}
}

func (r *Router) Add(b Binding) error {
	if _, loaded := r.byName.LoadOrStore(b.Name(), b); loaded {
		return errors.Errorf("binding %s already registered", b.Name())
	}
	if _, loaded := r.byTopic.LoadOrStore(b.CommandTopic(), b); loaded {
		r.byName.Delete(b.Name())
		return errors.Errorf("command topic %s already used", b.CommandTopic())
	}

	if in, isInput := b.(*InputShell); isInput {
		r.inputs = append(r.inputs, in)
	}
	return nil
}

// Dispatch hands the message to the binding owning the topic and reports
// whether there was one.
func (r *Router) Dispatch(topic string, payload []byte) bool {
	b, found := r.byTopic.Load(topic)
	if !found {
		logger.Debug("no binding for topic", "topic", topic)
		return false
	}
	return b.HandleMessage(topic, payload)
}

// Reconnect resubscribes and republishes every binding.
func (r *Router) Reconnect() {
	for _, b := range r.Bindings() {
		b.OnReconnect()
	}
}

// Poll polls every input binding in registration order.
func (r *Router) Poll() (changes []Change) {
	for _, in := range r.inputs {
		state, changed := in.Poll()
		if changed {
			changes = append(changes, Change{Name: in.Name(), State: state})
		}
	}
	return
}

func (r *Router) Binding(name string) (Binding, bool) {
	return r.byName.Load(name)
}

// Bindings returns all bindings sorted by name.
func (r *Router) Bindings() (bindings []Binding) {
	r.byName.Range(func(_ string, b Binding) bool {
		bindings = append(bindings, b)
		return true
	})
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Name() < bindings[j].Name()
	})
	return
}

func (r *Router) Topics() (topics []string) {
	for _, b := range r.Bindings() {
		topics = append(topics, b.CommandTopic())
	}
	return
}
