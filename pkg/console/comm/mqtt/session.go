package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received. Topic is relative
// to the session prefix.
type Handler func(topic string, payload []byte)

// Session wraps an MQTT client scoped to a topic prefix. Subscriptions
// survive reconnects.
type Session struct {
	Client paho.Client
	Prefix string

	// OnConnect is invoked after each (re)connection and resubscription.
	OnConnect func(*Session)

	lock    sync.RWMutex
	nextID  uint64
	filters map[string]map[uint64]Handler
}

// Subscription is a handler registered for a topic filter.
type Subscription struct {
	session *Session
	filter  string
	id      uint64
}

// MatchTopic reports whether topic matches filter with MQTT wildcards.
func MatchTopic(topic, filter string) bool {
	levels, patterns := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, p := range patterns {
		if p == "#" {
			return i == len(patterns)-1
		}
		if i >= len(levels) {
			return false
		}
		if p != "+" && p != levels[i] {
			return false
		}
	}
	return len(levels) == len(patterns)
}

// ParseURL converts a broker URL into client options and a topic prefix.
// The URL path becomes the prefix, e.g. mqtt://host:1883/flight1/.
// Query parameter client-id overrides the client ID.
func ParseURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewSession creates a Session. The connection handlers of options
// are taken over by the session.
func NewSession(opts *paho.ClientOptions, prefix string) *Session {
	s := &Session{Prefix: prefix, filters: make(map[string]map[uint64]Handler)}
	opts.SetOnConnectHandler(s.connected)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt: connection lost: %v", err)
	})
	s.Client = paho.NewClient(opts)
	return s
}

// Connect starts connecting.
func (s *Session) Connect() paho.Token {
	return s.Client.Connect()
}

// Close implements io.Closer.
func (s *Session) Close() error {
	s.Client.Disconnect(100)
	return nil
}

// Subscribe registers handler on filter. The broker subscription is
// made once per filter.
func (s *Session) Subscribe(filter string, handler Handler) *Subscription {
	s.lock.Lock()
	s.nextID++
	sub := &Subscription{session: s, filter: filter, id: s.nextID}
	handlers := s.filters[filter]
	first := handlers == nil
	if first {
		handlers = make(map[uint64]Handler)
		s.filters[filter] = handlers
	}
	handlers[sub.id] = handler
	s.lock.Unlock()
	if first && s.Client.IsConnected() {
		glog.V(2).Infof("mqtt: SUB %q", s.Prefix+filter)
		s.Client.Subscribe(s.Prefix+filter, 0, s.dispatch)
	}
	return sub
}

// Publish publishes payload to topic.
func (s *Session) Publish(topic string, payload []byte, qos byte, retain bool) paho.Token {
	return s.Client.Publish(s.Prefix+topic, qos, retain, payload)
}

func (s *Session) connected(paho.Client) {
	glog.Info("mqtt: connected")
	s.lock.RLock()
	topics := make(map[string]byte, len(s.filters))
	for filter := range s.filters {
		topics[s.Prefix+filter] = 0
	}
	s.lock.RUnlock()
	if len(topics) > 0 {
		s.Client.SubscribeMultiple(topics, s.dispatch)
	}
	if fn := s.OnConnect; fn != nil {
		fn(s)
	}
}

func (s *Session) dispatch(_ paho.Client, msg paho.Message) {
	if !strings.HasPrefix(msg.Topic(), s.Prefix) {
		return
	}
	topic := msg.Topic()[len(s.Prefix):]
	glog.V(3).Infof("mqtt: RCV %q", topic)
	var handlers []Handler
	s.lock.RLock()
	for filter, subs := range s.filters {
		if MatchTopic(topic, filter) {
			for _, h := range subs {
				handlers = append(handlers, h)
			}
		}
	}
	s.lock.RUnlock()
	for _, h := range handlers {
		h(topic, msg.Payload())
	}
}

// Close removes the handler, and unsubscribes the filter when it was
// the last one.
func (sub *Subscription) Close() error {
	s := sub.session
	s.lock.Lock()
	handlers := s.filters[sub.filter]
	delete(handlers, sub.id)
	last := handlers != nil && len(handlers) == 0
	if last {
		delete(s.filters, sub.filter)
	}
	s.lock.Unlock()
	if !last || !s.Client.IsConnected() {
		return nil
	}
	token := s.Client.Unsubscribe(s.Prefix + sub.filter)
	token.Wait()
	return token.Error()
}
