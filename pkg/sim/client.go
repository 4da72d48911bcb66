package sim

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"signal-collector/pkg/utils"
)

// Client is the JSON-over-TCP bridge client. Command requests and
// responses are newline-delimited JSON on a single connection; camera
// frames arrive interleaved as events on the same connection, with the
// pixel buffer base64-encoded.
type Client struct {
	conn   net.Conn
	logger *zap.SugaredLogger

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *message
	sensors map[uint32]FrameFunc

	corrupt atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
}

type message struct {
	ID     uint64          `json:"id,omitempty"`
	Op     string          `json:"op,omitempty"`
	Args   any             `json:"args,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	Event  string     `json:"event,omitempty"`
	Sensor uint32     `json:"sensor,omitempty"`
	Frame  *wireFrame `json:"frame,omitempty"`
}

type wireFrame struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial bridge %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		logger:  utils.GetLogger(),
		enc:     json.NewEncoder(conn),
		pending: make(map[uint64]chan *message),
		sensors: make(map[uint32]FrameFunc),
		closed:  make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// CorruptFrames returns the number of frame events dropped because their
// payload failed to decode or did not match the declared geometry.
func (c *Client) CorruptFrames() uint64 {
	return c.corrupt.Load()
}

// LoadWorld asks the bridge to (re)load a town and returns a handle to it.
func (c *Client) LoadWorld(town string) (World, error) {
	if err := c.call("load_world", map[string]any{"town": town}, nil); err != nil {
		return nil, err
	}
	return &world{c: c}, nil
}

func (c *Client) call(op string, args, result any) error {
	return c.callCtx(context.Background(), op, args, result)
}

func (c *Client) callCtx(ctx context.Context, op string, args, result any) error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return fmt.Errorf("bridge %s: connection closed", op)
	default:
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.enc.Encode(&message{ID: id, Op: op, Args: args})
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("bridge %s: %w", op, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("bridge %s: %s", op, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("bridge %s: decode result: %w", op, err)
			}
		}
		return nil
	case <-c.closed:
		c.dropPending(id)
		if c.readErr != nil {
			return fmt.Errorf("bridge %s: %w", op, c.readErr)
		}
		return fmt.Errorf("bridge %s: connection closed", op)
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	}
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	r := bufio.NewReaderSize(c.conn, 1<<20)
	dec := json.NewDecoder(r)
	for {
		msg := &message{}
		if err := dec.Decode(msg); err != nil {
			c.readErr = err
			c.closeOnce.Do(func() {
				close(c.closed)
				_ = c.conn.Close()
			})
			return
		}

		if msg.Event != "" {
			c.dispatchEvent(msg)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

func (c *Client) dispatchEvent(msg *message) {
	if msg.Event != "frame" || msg.Frame == nil {
		c.logger.Debugf("bridge: ignoring event %q", msg.Event)
		return
	}

	c.mu.Lock()
	fn := c.sensors[msg.Sensor]
	c.mu.Unlock()
	if fn == nil {
		return
	}

	data, err := base64.StdEncoding.DecodeString(msg.Frame.Data)
	if err != nil {
		c.corrupt.Add(1)
		c.logger.Debugf("bridge: corrupt frame from sensor %d: %s", msg.Sensor, err)
		return
	}
	img := &Image{
		Width:     msg.Frame.Width,
		Height:    msg.Frame.Height,
		Data:      data,
		Timestamp: time.UnixMilli(msg.Frame.Timestamp),
	}
	if !img.Valid() {
		c.corrupt.Add(1)
		c.logger.Debugf("bridge: sensor %d frame geometry mismatch: %dx%d with %d bytes",
			msg.Sensor, img.Width, img.Height, len(img.Data))
		return
	}
	fn(img)
}

type world struct {
	c *Client
}

func (w *world) Settings() (WorldSettings, error) {
	var s WorldSettings
	err := w.c.call("world_settings", nil, &s)
	return s, err
}

func (w *world) ApplySettings(s WorldSettings) error {
	return w.c.call("apply_settings", s, nil)
}

func (w *world) Tick(ctx context.Context) (uint64, error) {
	var res struct {
		Frame uint64 `json:"frame"`
	}
	if err := w.c.callCtx(ctx, "tick", nil, &res); err != nil {
		return 0, err
	}
	return res.Frame, nil
}

func (w *world) Actors(filter string) ([]Actor, error) {
	var actors []Actor
	err := w.c.call("actors", map[string]any{"filter": filter}, &actors)
	return actors, err
}

func (w *world) SetSpectator(t Transform) error {
	return w.c.call("set_spectator", t, nil)
}

func (w *world) SpawnVehicle(model string) (Vehicle, error) {
	var res struct {
		ID uint32 `json:"id"`
	}
	if err := w.c.call("spawn_vehicle", map[string]any{"model": model}, &res); err != nil {
		return nil, err
	}
	return &vehicle{c: w.c, id: res.ID}, nil
}

type vehicle struct {
	c  *Client
	id uint32
}

func (v *vehicle) ID() uint32 { return v.id }

func (v *vehicle) Transform() (Transform, error) {
	var t Transform
	err := v.c.call("vehicle_transform", map[string]any{"id": v.id}, &t)
	return t, err
}

func (v *vehicle) Velocity() (Location, error) {
	var vel Location
	err := v.c.call("vehicle_velocity", map[string]any{"id": v.id}, &vel)
	return vel, err
}

func (v *vehicle) ApplyControl(ctl VehicleControl) error {
	return v.c.call("apply_control", map[string]any{"id": v.id, "control": ctl}, nil)
}

func (v *vehicle) AttachCamera(spec CameraSpec, fn FrameFunc) (Sensor, error) {
	var res struct {
		ID uint32 `json:"id"`
	}
	if err := v.c.call("attach_camera", map[string]any{"vehicle": v.id, "spec": spec}, &res); err != nil {
		return nil, err
	}
	v.c.mu.Lock()
	v.c.sensors[res.ID] = fn
	v.c.mu.Unlock()

	return &sensor{c: v.c, id: res.ID}, nil
}

func (v *vehicle) Destroy() error {
	return v.c.call("destroy_actor", map[string]any{"id": v.id}, nil)
}

type sensor struct {
	c  *Client
	id uint32
}

func (s *sensor) Stop() error {
	err := s.c.call("sensor_stop", map[string]any{"id": s.id}, nil)
	s.c.mu.Lock()
	delete(s.c.sensors, s.id)
	s.c.mu.Unlock()
	return err
}

func (s *sensor) Destroy() error {
	return s.c.call("destroy_actor", map[string]any{"id": s.id}, nil)
}
