// Command client is a minimal interactive linechat client: it logs in,
// pumps stdin lines to the server, and prints server lines to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/NicolasHaas/linechat/pkg/protocol"
	"github.com/NicolasHaas/linechat/pkg/version"
)

func main() {
	addr := flag.String("addr", fmt.Sprintf("localhost:%d", protocol.DefaultPort), "server address")
	name := flag.String("name", "", "username to log in as (empty skips the automatic LOGIN)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("linechat client " + version.String())
		return
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()
	fmt.Printf("connected to %s\n", *addr)

	if *name != "" {
		if _, err := fmt.Fprintf(conn, "%s %s\n", protocol.CmdLogin, *name); err != nil {
			fmt.Fprintf(os.Stderr, "login: %v\n", err)
			os.Exit(1)
		}
	}

	// Server lines to stdout until the connection drops.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := protocol.NewLineScanner(conn)
		for sc.Scan() {
			fmt.Println(sc.Text())
		}
		fmt.Println("disconnected from server")
	}()

	// Stdin lines to the server.
	go func() {
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			if _, err := fmt.Fprintf(conn, "%s\n", in.Text()); err != nil {
				return
			}
		}
		// Stdin closed: hang up.
		_ = conn.Close()
	}()

	<-done
}
