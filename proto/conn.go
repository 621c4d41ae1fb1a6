// Message Socket Transport
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-trb.
//
// go-trb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-trb is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-trb. If not, see
// <http://www.gnu.org/licenses/>

package proto

import (
	"context"
	"encoding/json"
	"io"

	"go-trb"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Largest message accepted from the simulator.  Results of large
// melee battles exceed the default limit of the websocket library.
const readLimit = 1 << 20

// ErrClosed is returned by Recv when the peer has closed the
// connection.
var ErrClosed = errors.New("connection closed")

// Conn is a message oriented connection to the simulator
type Conn interface {
	Recv(ctx context.Context) (*Message, error)
	Send(ctx context.Context, v interface{}) error
	Close() error
}

type wsConn struct {
	c *websocket.Conn
}

// Dial connects to the simulator listening on URL, e.g.
// ws://localhost:7654.
func Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to %s", url)
	}
	c.SetReadLimit(readLimit)
	trb.Debug.Printf("Connected to %s", url)
	return &wsConn{c: c}, nil
}

func (w *wsConn) Recv(ctx context.Context) (*Message, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.CloseStatus(err) != -1 || errors.Is(err, io.EOF) ||
			errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrClosed
		}
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(err, "malformed message %q", data)
	}
	trb.Debug.Printf("Received %s", msg.Type)
	return &msg, nil
}

func (w *wsConn) Send(ctx context.Context, v interface{}) error {
	return wsjson.Write(ctx, w.c, v)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
