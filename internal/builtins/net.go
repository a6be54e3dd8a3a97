package builtins

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
	"slate/internal/vm"
)

// wsConn is the Go-side resource a ws handle string stands in for, the same
// opaque-handle pattern db.go uses for *sql.DB: the slate program never
// sees the *websocket.Conn itself, only the string key.
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

type wsRegistry struct {
	mu    sync.Mutex
	conns map[string]*wsConn
	next  int
}

var wsReg = &wsRegistry{conns: map[string]*wsConn{}}

func (r *wsRegistry) add(c *wsConn) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle := fmt.Sprintf("ws%d", r.next)
	r.conns[handle] = c
	return handle
}

func (r *wsRegistry) get(handle string) (*wsConn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[handle]
	return c, ok
}

func (r *wsRegistry) remove(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, handle)
}

// registerNet installs the ws native-function table (§PART C domain
// stack): ws_dial, ws_send, ws_recv, ws_close.
func registerNet(v *vm.VM) {
	define(v, "ws_dial", 1, nativeWSDial)
	define(v, "ws_send", 2, nativeWSSend)
	define(v, "ws_recv", -1, nativeWSRecv)
	define(v, "ws_close", 1, nativeWSClose)
}

func nativeWSDial(vmm *vm.VM, args []value.Value) (value.Value, error) {
	url, err := stringArg(vmm, args, 0, "ws_dial")
	if err != nil {
		return value.Value{}, err
	}
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws_dial: "+err.Error())
	}
	handle := wsReg.add(&wsConn{conn: conn})
	return value.NewString(handle), nil
}

func nativeWSSend(vmm *vm.VM, args []value.Value) (value.Value, error) {
	handle, err := stringArg(vmm, args, 0, "ws_send")
	if err != nil {
		return value.Value{}, err
	}
	msg, err := stringArg(vmm, args, 1, "ws_send")
	if err != nil {
		return value.Value{}, err
	}
	c, ok := wsReg.get(handle)
	if !ok {
		return value.Value{}, vmm.NewError(stdlibErrors.Reference, "no open ws handle: "+handle)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws handle is closed: "+handle)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws_send: "+err.Error())
	}
	return value.Bool(true), nil
}

// ws_recv(handle, [timeout_ms]) -> string
func nativeWSRecv(vmm *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.Value{}, vmm.NewError(stdlibErrors.Arity, "ws_recv expects at least 1 argument")
	}
	handle, err := stringArg(vmm, args, 0, "ws_recv")
	if err != nil {
		return value.Value{}, err
	}
	c, ok := wsReg.get(handle)
	if !ok {
		return value.Value{}, vmm.NewError(stdlibErrors.Reference, "no open ws handle: "+handle)
	}
	timeout := 10 * time.Second
	if len(args) > 1 && args[1].Kind == value.KindInt32 {
		timeout = time.Duration(args[1].AsInt32()) * time.Millisecond
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws handle is closed: "+handle)
	}
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, msg, err := c.conn.ReadMessage()
	c.mu.Unlock()
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws_recv: "+err.Error())
	}
	return value.NewString(string(msg)), nil
}

func nativeWSClose(vmm *vm.VM, args []value.Value) (value.Value, error) {
	handle, err := stringArg(vmm, args, 0, "ws_close")
	if err != nil {
		return value.Value{}, err
	}
	c, ok := wsReg.get(handle)
	if !ok {
		return value.Value{}, vmm.NewError(stdlibErrors.Reference, "no open ws handle: "+handle)
	}
	c.mu.Lock()
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err = c.conn.Close()
	c.mu.Unlock()
	wsReg.remove(handle)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "ws_close: "+err.Error())
	}
	return value.Bool(true), nil
}
