// Docker-Based Bot Isolation
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

package isol

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go-trb"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

// Characters not permitted in container names
var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Docker launches each bot in a container of its own, with the bot
// directory mounted read-only.  The container shares the network of
// the host, so that SERVER_URL can point to localhost.
type Docker struct {
	Image    string
	CPUs     float64
	MemoryMB int
	Network  string
	// Host directories mounted read-only and added to PYTHONPATH
	Path     []string
	Grace    time.Duration

	lock sync.Mutex
	cont *client.Client
}

func (d *Docker) client() (*client.Client, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.cont == nil {
		var err error
		d.cont, err = client.NewClientWithOpts(client.FromEnv,
			client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, errors.Wrap(err, "Failed to connect to docker")
		}
	}
	return d.cont, nil
}

// Bind mounts and environment of a container for the bot in DIR,
// connecting to URL.
func (d *Docker) mounts(dir, url string) (binds, env []string, err error) {
	binds = []string{dir + ":/bot:ro"}
	env = []string{"SERVER_URL=" + url}

	var targets []string
	for i, p := range d.Path {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, err
		}
		target := fmt.Sprintf("/pythonpath/%d", i)
		binds = append(binds, abs+":"+target+":ro")
		targets = append(targets, target)
	}
	if len(targets) > 0 {
		env = append(env, "PYTHONPATH="+strings.Join(targets, ":"))
	}
	return binds, env, nil
}

// Launch starts the bot E in a new container
func (d *Docker) Launch(e trb.Entrant, opt LaunchOptions) (Stopper, error) {
	entry, err := EntryPoint(e.Dir)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(e.Dir)
	if err != nil {
		return nil, &LaunchError{What: "bot", Path: e.Dir, Err: err}
	}
	binds, env, err := d.mounts(dir, opt.URL)
	if err != nil {
		return nil, &LaunchError{What: "bot", Path: e.Dir, Err: err}
	}
	cont, err := d.client()
	if err != nil {
		return nil, &LaunchError{What: "bot", Path: d.Image, Err: err}
	}

	network := d.Network
	if network == "" {
		network = "host"
	}
	name := fmt.Sprintf("trb-%s-%d", unsafeName.ReplaceAllString(e.Name, "_"),
		time.Now().UnixNano())

	// The documentation for the library is sparse, but it is also
	// just a wrapper around a HTTP API.  To understand what this
	// configuration does, it is necessary to read
	// https://docs.docker.com/engine/api/v1.41/#operation/ContainerCreate
	ctx := context.Background()
	resp, err := cont.ContainerCreate(ctx, &container.Config{
		Image:      d.Image,
		Cmd:        []string{"python", path.Join(filepath.ToSlash(entry))},
		WorkingDir: "/bot",
		Env:        env,
	}, &container.HostConfig{
		Binds:       binds,
		NetworkMode: container.NetworkMode(network),
		Resources: container.Resources{
			NanoCPUs: int64(d.CPUs * 1e9),
			Memory:   int64(d.MemoryMB) * 1024 * 1024,
		},
	}, nil, nil, name)
	if err != nil {
		return nil, &LaunchError{What: "container", Path: d.Image,
			Err: errors.Wrapf(err, "Failed to create container %s", name)}
	}

	b := &box{
		name:  name,
		id:    resp.ID,
		cont:  cont,
		grace: d.Grace,
		done:  make(chan struct{}),
	}
	if b.grace <= 0 {
		b.grace = DefaultGrace
	}
	if err := cont.ContainerStart(ctx, b.id, types.ContainerStartOptions{}); err != nil {
		b.remove()
		return nil, errors.Wrapf(err, "Failed to start container %s", name)
	}
	go b.follow(opt.Log)

	return b, nil
}

// A box is a running bot container
type box struct {
	name  string
	id    string
	cont  *client.Client
	grace time.Duration
	done  chan struct{}

	once sync.Once
	err  error
}

func (b *box) String() string { return b.name }

// Copy the output of the container into the log file LOGF
func (b *box) follow(logf string) {
	defer close(b.done)

	var out io.Writer = io.Discard
	if logf != "" {
		file, err := os.Create(logf)
		if err != nil {
			trb.Debug.Printf("Cannot log %s: %s", b, err)
		} else {
			defer file.Close()
			out = file
		}
	}

	rc, err := b.cont.ContainerLogs(context.Background(), b.id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		trb.Debug.Print(err)
		return
	}
	defer rc.Close()

	if _, err = stdcopy.StdCopy(out, out, rc); err != nil {
		trb.Debug.Print(err)
	}
}

func (b *box) remove() error {
	err := b.cont.ContainerRemove(context.Background(), b.id,
		types.ContainerRemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return errors.Wrapf(err, "Failed to remove container %s", b.name)
	}
	return nil
}

// Stop the container, giving it the grace period to shut down, and
// remove it afterwards.
func (b *box) Stop() error {
	b.once.Do(func() {
		ctx := context.Background()
		grace := b.grace
		err := b.cont.ContainerStop(ctx, b.id, &grace)
		if err != nil && !client.IsErrNotFound(err) {
			trb.Debug.Printf("Failed to stop container %s: %s", b, err)
		}
		b.err = b.remove()

		select {
		case <-b.done:
		case <-time.After(time.Second):
		}
	})
	return b.err
}

var _ Launcher = &Docker{}
