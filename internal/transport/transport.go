// Package transport provides the line-oriented text channel the protocol
// runs on. Reads are capped at 1024 bytes per line, matching the client
// read buffer.
package transport

import (
	"bufio"
	"net"
	"sync"
)

const maxLineSize = 1024

// Conn is one client connection: UTF-8 text, one message per line.
// Closing the connection is the sole cancellation primitive; readers
// observe it as an error from ReadLine.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(text string) error
	Close() error
	RemoteAddr() net.Addr
}

type lineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

// NewLineConn wraps a stream connection in the line codec.
func NewLineConn(conn net.Conn) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)
	return &lineConn{conn: conn, scanner: scanner}
}

func (c *lineConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", net.ErrClosed
	}
	return c.scanner.Text(), nil
}

func (c *lineConn) WriteLine(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(text + "\n"))
	return err
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func (c *lineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
