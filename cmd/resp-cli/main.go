// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"github.com/nishisan-dev/mini-redis/internal/client"
)

const defaultPort = 6379

func main() {
	_ = godotenv.Load()

	root := flag.NewFlagSet("resp-cli", flag.ExitOnError)
	host := root.String("hostname", "127.0.0.1", "server host")
	port := root.Int("port", defaultPort, "server port")
	root.Parse(os.Args[1:])

	args := root.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: resp-cli [--hostname H] [--port P] <ping|get|set|del|publish|subscribe> ...")
		os.Exit(2)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	c, err := client.Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	cmd, rest := args[0], args[1:]
	if err := dispatch(c, cmd, rest); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "ping":
		msg := ""
		hasMsg := len(args) > 0
		if hasMsg {
			msg = args[0]
		}
		v, err := c.Ping(msg, hasMsg)
		if err != nil {
			return err
		}
		printValue(v)
		return nil

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := c.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		printValue(v)
		return nil

	case "set":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: set <key> <value> [expire_ms]")
		}
		key, value := args[0], []byte(args[1])
		if len(args) == 2 {
			if err := c.Set(key, value); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		}
		ms, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid expiration: %w", err)
		}
		if err := c.SetExpire(key, value, time.Duration(ms)*time.Millisecond); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: del <key>")
		}
		if _, err := c.Del(args[0]); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case "publish":
		if len(args) != 2 {
			return fmt.Errorf("usage: publish <channel> <message>")
		}
		if _, err := c.Publish(args[0], []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("publish ok")
		return nil

	case "subscribe":
		if len(args) == 0 {
			return fmt.Errorf("channel(s) must be provided")
		}
		sub, err := c.Subscribe(args)
		if err != nil {
			return err
		}
		for {
			msg, ok, err := sub.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			fmt.Printf("got message from the channel: %s; message = %s\n", msg.Channel, debugString(msg.Content))
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// printValue mirrors the original client's debug fallback: valid UTF-8 is
// printed as a quoted string, anything else falls back to a Go %v dump of
// the raw bytes.
func printValue(v []byte) {
	if utf8.Valid(v) {
		fmt.Printf("%q\n", string(v))
		return
	}
	fmt.Printf("%v\n", v)
}

func debugString(v []byte) string {
	if utf8.Valid(v) {
		return fmt.Sprintf("%q", string(v))
	}
	return fmt.Sprintf("%v", v)
}
