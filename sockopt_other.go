// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

//go:build !unix

package vncserver

import (
	"net"
	"syscall"
)

func listenControl(network, address string, c syscall.RawConn) error {
	return nil
}

func tuneConn(conn net.Conn) error {
	if tcp, ok := conn.(*net.TCPConn); ok {
		return tcp.SetNoDelay(true)
	}
	return nil
}
