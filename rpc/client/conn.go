package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// Conn is a client connection speaking the line protocol. A response is
// everything the server writes up to the next prompt.
type Conn struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	prompt  []byte
	timeout time.Duration
}

// Dial connects to config.Endpoint over config.Transport (default tcp) and
// waits for the first prompt
func Dial(config common.ClientConfig) (*Conn, error) {
	prompt := config.Prompt
	if prompt == "" {
		prompt = common.DefaultPrompt
	}
	network := config.Transport
	if network == "" {
		network = common.DefaultTransport
	}
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	netConn, err := net.DialTimeout(network, config.Endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	c := &Conn{
		conn:    netConn,
		reader:  bufio.NewReader(netConn),
		prompt:  []byte(prompt),
		timeout: timeout,
	}

	c.setDeadline()
	if _, err := c.readResponse(); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("failed to read prompt from %s: %w", config.Endpoint, err)
	}

	Logger.Debugf("connected to %s", config.Endpoint)
	return c, nil
}

// Do sends one request line and returns the response without its trailing
// newline. If the server closes the connection instead of prompting again,
// the output received so far is returned together with io.EOF.
func (c *Conn) Do(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setDeadline()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	return c.readResponse()
}

// Quit asks the server to close the connection and waits until it did
func (c *Conn) Quit() error {
	resp, err := c.Do("quit")
	defer c.Close()
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("server did not close the connection after quit (response %q, err %v)", resp, err)
	}
	return nil
}

// Hangup closes the sending side and returns everything the server writes
// until it closes the connection
func (c *Conn) Hangup() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	halfCloser, ok := c.conn.(interface{ CloseWrite() error })
	if !ok {
		return "", errors.New("connection does not support closing the sending side")
	}
	if err := halfCloser.CloseWrite(); err != nil {
		return "", fmt.Errorf("failed to close sending side: %w", err)
	}

	c.setDeadline()
	resp, err := c.readResponse()
	if errors.Is(err, io.EOF) {
		return resp, nil
	}
	if err == nil {
		err = errors.New("server prompted after hangup")
	}
	return resp, err
}

// Close closes the connection
func (c *Conn) Close() error {
	return c.conn.Close()
}

// readResponse reads until the prompt. The prompt only counts at the start of
// the stream or directly after a newline.
func (c *Conn) readResponse() (string, error) {
	var buf []byte
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return strings.TrimSuffix(string(buf), "\n"), err
		}
		buf = append(buf, b)

		if !bytes.HasSuffix(buf, c.prompt) {
			continue
		}
		rest := buf[:len(buf)-len(c.prompt)]
		if len(rest) == 0 || rest[len(rest)-1] == '\n' {
			return strings.TrimSuffix(string(rest), "\n"), nil
		}
	}
}

func (c *Conn) setDeadline() {
	if c.timeout <= 0 {
		return
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		Logger.Warningf("failed to set deadline: %v", err)
	}
}
