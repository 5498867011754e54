package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/starlight-bridge/starlight/internal/mcp"
)

// Options for sending one message through a running daemon
type Options struct {
	APIURL string `long:"api-url" env:"STARLIGHT_API_URL" default:"http://127.0.0.1:9876" description:"Base URL of the daemon control API"`
	Args   struct {
		RoomID  string `positional-arg-name:"room_id" required:"yes"`
		Message string `positional-arg-name:"message" required:"yes"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	p := flags.NewParser(&opts, flags.Default)
	p.Usage = "[OPTIONS] <room_id> <message>"
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := mcp.NewClient(opts.APIURL)
	ok, err := client.SendToRoom(ctx, opts.Args.RoomID, opts.Args.Message)
	if err != nil {
		fmt.Printf("Failed to send message: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Room has no reply action; nothing was sent")
		os.Exit(1)
	}
	fmt.Println("Message sent successfully!")
}
