// Package transport implements the connection layer described in spec.md
// §4.1/§4.2: a multi-endpoint publish/subscribe plus identified
// request/reply transport with automatic routing by destination.
//
// No Go repository in the retrieved example pack depends on ZeroMQ, which is
// what the original DataBeam endpoint is built on
// (_examples/original_source/libs/cpp/header/ZMQConnectionManager.h). The
// closest grounded analogue actually present in the pack is
// github.com/eclipse/paho.mqtt.golang, used throughout the teacher's
// cmd/mqtt-kafka-bridge and cmd/data-bridge commands. Endpoint therefore
// holds four independent paho MQTT client connections (one per spec.md §6
// port) and layers UUID-correlated request/reply on top of ordinary
// publish/subscribe topics.
package transport

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/virtual-vehicle/databeam/internal/jsonutil"
	"github.com/virtual-vehicle/databeam/internal/metrics"
	"github.com/virtual-vehicle/databeam/internal/shutdown"
)

// SubscribeHandler processes one received publish for a subscribed key.
type SubscribeHandler func(key string, payload []byte)

// QueryableHandler answers one inbound query for a declared topic and
// returns the reply payload.
type QueryableHandler func(topic string, payload []byte) []byte

// Ports names the four broker-side ports an Endpoint connects to,
// mirroring DB_ROUTER_SUB_PORT / DB_ROUTER_PUB_PORT / DB_ROUTER_FRONTEND_PORT
// / DB_ROUTER_BACKEND_PORT from spec.md §6.
type Ports struct {
	Host         string
	SubPort      string
	PubPort      string
	FrontendPort string
	BackendPort  string
}

type subEntry struct {
	token   interface{}
	handler SubscribeHandler
}

type subMessage struct {
	key     string
	payload []byte
}

type queryFrame struct {
	From    string `json:"from"`
	UUID    string `json:"uuid"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

type replyFrame struct {
	UUID    string `json:"uuid"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Endpoint is the set of four sockets plus workers talking to one remote
// broker (spec.md §4.1).
type Endpoint struct {
	self  string
	ports Ports

	pubClient mqtt.Client
	pubMu     sync.Mutex

	subClient  mqtt.Client
	subMu      sync.RWMutex
	subscriber map[string][]subEntry
	subMsgCh   chan subMessage

	queryClient mqtt.Client
	queryMu     sync.Mutex
	pendingMu   sync.Mutex
	pending     map[string]chan replyFrame

	queryableClient mqtt.Client
	queryableMu     sync.RWMutex
	queryable       map[string]QueryableHandler
	queryableMsgCh  chan mqtt.Message

	uuids *uuidGen
	done  *shutdown.Token
	wg    sync.WaitGroup
}

// NewEndpoint connects the four sockets for selfAddress (the bus address
// this endpoint answers queryables at and receives replies at) against the
// given broker ports, and starts the subscription and queryable workers.
func NewEndpoint(selfAddress string, ports Ports, seed int64) (*Endpoint, error) {
	ep := &Endpoint{
		self:       selfAddress,
		ports:      ports,
		subscriber: make(map[string][]subEntry),
		subMsgCh:   make(chan subMessage, 256),
		pending:    make(map[string]chan replyFrame),
		queryable:  make(map[string]QueryableHandler),
		queryableMsgCh: make(chan mqtt.Message, 256),
		uuids:      newUUIDGen(seed),
		done:       shutdown.NewToken(),
	}

	var err error
	if ep.pubClient, err = connect(ports.Host, ports.PubPort, selfAddress+"-pub"); err != nil {
		return nil, fmt.Errorf("transport: connect pub socket: %w", err)
	}
	if ep.subClient, err = connect(ports.Host, ports.SubPort, selfAddress+"-sub"); err != nil {
		return nil, fmt.Errorf("transport: connect sub socket: %w", err)
	}
	if ep.queryClient, err = connect(ports.Host, ports.FrontendPort, selfAddress+"-query"); err != nil {
		return nil, fmt.Errorf("transport: connect query socket: %w", err)
	}
	if ep.queryableClient, err = connect(ports.Host, ports.BackendPort, selfAddress+"-queryable"); err != nil {
		return nil, fmt.Errorf("transport: connect queryable socket: %w", err)
	}

	if token := ep.queryClient.Subscribe(ep.self+"/reply", 1, ep.onReply); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("transport: subscribe reply topic: %w", token.Error())
	}
	if token := ep.queryableClient.Subscribe(ep.self+"/query", 1, ep.onQueryRaw); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("transport: subscribe query topic: %w", token.Error())
	}

	ep.wg.Add(2)
	go ep.subscriptionWorker()
	go ep.queryableWorker()

	return ep, nil
}

// connect dials one paho MQTT client, with zero linger so Close() returns
// promptly, per spec.md §4.1 ("Linger is zero on all sockets so shutdown is
// prompt").
func connect(host, port, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%s", host, port))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		zap.S().Warnw("transport: connection lost", "client", clientID, "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// DeclareQueryable registers handler to answer inbound queries for topic.
func (ep *Endpoint) DeclareQueryable(topic string, handler QueryableHandler) {
	ep.queryableMu.Lock()
	defer ep.queryableMu.Unlock()
	ep.queryable[topic] = handler
}

// Subscribe registers handler under key. Subscribing the same handler twice
// leaves exactly one reference (spec.md §8.6).
func (ep *Endpoint) Subscribe(key string, handler SubscribeHandler) {
	token := handlerToken(handler)

	ep.subMu.Lock()
	existing := ep.subscriber[key]
	isNewTopic := len(existing) == 0
	alreadyPresent := false
	for _, e := range existing {
		if e.token == token {
			alreadyPresent = true
			break
		}
	}
	if !alreadyPresent {
		ep.subscriber[key] = append(existing, subEntry{token: token, handler: handler})
	}
	ep.subMu.Unlock()

	if isNewTopic {
		if token := ep.subClient.Subscribe(key, 1, ep.onMessage); token.Wait() && token.Error() != nil {
			zap.S().Errorw("transport: subscribe failed", "key", key, "error", token.Error())
		}
	}
}

// Unsubscribe removes handler from key. Unsubscribing the last subscriber
// removes the topic subscription from the underlying transport (spec.md
// §3 invariant, §8.6).
func (ep *Endpoint) Unsubscribe(key string, handler SubscribeHandler) {
	token := handlerToken(handler)

	ep.subMu.Lock()
	existing := ep.subscriber[key]
	out := existing[:0]
	for _, e := range existing {
		if e.token != token {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		delete(ep.subscriber, key)
	} else {
		ep.subscriber[key] = out
	}
	removedLast := len(out) == 0
	ep.subMu.Unlock()

	if removedLast {
		if token := ep.subClient.Unsubscribe(key); token.Wait() && token.Error() != nil {
			zap.S().Errorw("transport: unsubscribe failed", "key", key, "error", token.Error())
		}
	}
}

// Publish fires key/data at the pub socket. Fire-and-forget: network errors
// are logged, never returned to the caller (spec.md §4.1 failure semantics).
func (ep *Endpoint) Publish(key string, data []byte) {
	ep.pubMu.Lock()
	defer ep.pubMu.Unlock()
	token := ep.pubClient.Publish(key, 1, false, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			zap.S().Errorw("transport: publish failed", "key", key, "error", token.Error())
		}
	}()
}

// Query sends a request to destIdentity's topic and blocks for at most
// timeout for a reply whose UUID matches. It returns an empty slice if no
// matching reply arrives in time (spec.md §4.1, §8 law 1). The query lock
// serializes callers, so at most one query is in flight per endpoint.
func (ep *Endpoint) Query(destIdentity, topic string, data []byte, timeout time.Duration) []byte {
	ep.queryMu.Lock()
	defer ep.queryMu.Unlock()

	uuid := ep.uuids.next()
	replyCh := make(chan replyFrame, 1)

	ep.pendingMu.Lock()
	ep.pending[uuid] = replyCh
	ep.pendingMu.Unlock()
	defer func() {
		ep.pendingMu.Lock()
		delete(ep.pending, uuid)
		ep.pendingMu.Unlock()
	}()

	frame := queryFrame{From: ep.self, UUID: uuid, Topic: topic, Payload: string(data)}
	body, err := jsonutil.Marshal(frame)
	if err != nil {
		zap.S().Errorw("transport: marshal query frame failed", "error", err)
		return nil
	}

	qtoken := ep.queryClient.Publish(destIdentity+"/query", 1, false, body)
	if qtoken.Wait() && qtoken.Error() != nil {
		zap.S().Debugw("transport: query publish failed", "dest", destIdentity, "error", qtoken.Error())
		return nil
	}

	select {
	case reply := <-replyCh:
		return []byte(reply.Payload)
	case <-time.After(timeout):
		zap.S().Debugw("transport: query timed out", "dest", destIdentity, "topic", topic)
		metrics.QueryTimeouts.Inc()
		return nil
	case <-ep.done.Done():
		return nil
	}
}

// Close flips the kill flag, joins both workers, and disconnects each
// socket, per spec.md §5 ("Transport shutdown flips kill flags, joins both
// workers, closes each socket under its own lock").
func (ep *Endpoint) Close() {
	ep.done.Trigger()
	ep.wg.Wait()

	ep.pubMu.Lock()
	ep.pubClient.Disconnect(0)
	ep.pubMu.Unlock()

	ep.subClient.Disconnect(0)
	ep.queryClient.Disconnect(0)
	ep.queryableClient.Disconnect(0)
}

func (ep *Endpoint) onMessage(_ mqtt.Client, msg mqtt.Message) {
	select {
	case ep.subMsgCh <- subMessage{key: msg.Topic(), payload: msg.Payload()}:
	default:
		zap.S().Warnw("transport: subscription queue full, dropping message", "key", msg.Topic())
	}
}

// subscriptionWorker blocks with a short receive timeout (the cancellation
// point), matching spec.md §4.1/§5.
func (ep *Endpoint) subscriptionWorker() {
	defer ep.wg.Done()
	for {
		select {
		case <-ep.done.Done():
			return
		case m := <-ep.subMsgCh:
			ep.subMu.RLock()
			handlers := append([]subEntry(nil), ep.subscriber[m.key]...)
			ep.subMu.RUnlock()
			for _, e := range handlers {
				e.handler(m.key, m.payload)
			}
		case <-time.After(100 * time.Millisecond):
			continue
		}
	}
}

func (ep *Endpoint) onReply(_ mqtt.Client, msg mqtt.Message) {
	var reply replyFrame
	if err := jsonutil.Unmarshal(msg.Payload(), &reply); err != nil {
		zap.S().Debugw("transport: malformed reply frame dropped", "error", err)
		return
	}
	ep.pendingMu.Lock()
	ch, ok := ep.pending[reply.UUID]
	ep.pendingMu.Unlock()
	if !ok {
		// Stale reply from a timed-out earlier call, or unmatched uuid; drop.
		return
	}
	select {
	case ch <- reply:
	default:
	}
}

func (ep *Endpoint) onQueryRaw(_ mqtt.Client, msg mqtt.Message) {
	select {
	case ep.queryableMsgCh <- msg:
	default:
		zap.S().Warnw("transport: queryable queue full, dropping request")
	}
}

// queryableWorker blocks on the queryable dealer socket, invoking the
// registered handler synchronously and sending the reply back, per
// spec.md §4.1.
func (ep *Endpoint) queryableWorker() {
	defer ep.wg.Done()
	for {
		select {
		case <-ep.done.Done():
			return
		case msg := <-ep.queryableMsgCh:
			ep.handleQuery(msg)
		}
	}
}

func (ep *Endpoint) handleQuery(msg mqtt.Message) {
	var req queryFrame
	if err := jsonutil.Unmarshal(msg.Payload(), &req); err != nil {
		zap.S().Debugw("transport: malformed queryable frame dropped", "error", err)
		return
	}

	ep.queryableMu.RLock()
	handler, ok := ep.queryable[req.Topic]
	ep.queryableMu.RUnlock()

	if !ok {
		zap.S().Debugw("transport: no handler for queryable topic, frame dropped", "topic", req.Topic)
		return
	}

	replyPayload := handler(req.Topic, []byte(req.Payload))
	reply := replyFrame{UUID: req.UUID, Topic: req.Topic, Payload: string(replyPayload)}
	body, err := jsonutil.Marshal(reply)
	if err != nil {
		zap.S().Errorw("transport: marshal reply frame failed", "error", err)
		return
	}

	ep.queryableClient.Publish(req.From+"/reply", 1, false, body)
}

// handlerToken derives a stable equality token for a SubscribeHandler value,
// per spec.md §9's "Raw-pointer subscriber/queryable handlers stored in
// maps" redesign note: a Go func value is not comparable, so callers that
// need exactly-once semantics across repeated Subscribe/Unsubscribe calls
// must pass the same bound handler value each time; we key subscriptions by
// its reflected function pointer, which is stable for a given closure.
func handlerToken(h SubscribeHandler) interface{} {
	return fmt.Sprintf("%p", h)
}
