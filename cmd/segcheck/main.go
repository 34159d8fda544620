// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Command segcheck describes the segments of
// an index directory and verifies their checksums.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/config"
	"github.com/SnellerInc/segcodec/store"
)

var (
	dashv      bool
	dashh      bool
	dashcompat bool
	dashmmap   bool
	dashverify bool
	dashconfig string
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.BoolVar(&dashh, "h", false, "show usage help")
	flag.BoolVar(&dashcompat, "compat", false, "allow reads of format versions outside the production window")
	flag.BoolVar(&dashmmap, "mmap", false, "memory-map files instead of using positional reads")
	flag.BoolVar(&dashverify, "verify", false, "verify the checksums of every stored-fields file")
	flag.StringVar(&dashconfig, "config", "", "YAML configuration file")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}

func openDir(root string) (store.Directory, error) {
	if dashmmap {
		return store.NewMmapDirectory(root)
	}
	d, err := store.NewFSDirectory(root)
	if err != nil {
		return nil, err
	}
	if dashv {
		d.Log = logf
	}
	return d, nil
}

func readOptions() codec.ReadOptions {
	conf := config.Default()
	if dashconfig != "" {
		c, err := config.Load(dashconfig)
		if err != nil {
			exitf("%s\n", err)
		}
		conf = c
	}
	var logger *log.Logger
	if dashv {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	opts := conf.ReadOptions(logger)
	if dashcompat {
		opts.Compat = true
	}
	return opts
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 || dashh {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "    %s [-v] [-compat] [-mmap] [-verify] [-config <file>] <dir>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "        describe the newest commit of the index in <dir>\n")
		flag.Usage()
		os.Exit(1)
	}
	dir, err := openDir(args[0])
	if err != nil {
		exitf("%s\n", err)
	}
	opts := readOptions()
	if err := check(os.Stdout, dir, &opts, dashverify); err != nil {
		exitf("%s\n", err)
	}
}
