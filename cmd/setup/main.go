// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jeranaias/ollamadesk/internal/config"
	"github.com/jeranaias/ollamadesk/internal/ollama"
)

// MinDiskSpaceGB is the free space below which the disk check warns.
// Small chat models still run into several GB once pulled.
const MinDiskSpaceGB = 5

// CheckResult is the outcome of one preflight check.
type CheckResult struct {
	Name    string
	Status  string // "pass", "warn", "fail"
	Message string
	Fix     string
}

func main() {
	pull := flag.Bool("pull", false, "pull the default model if it is absent")
	initConfig := flag.Bool("init", false, "write a default config.toml if none exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	rt := ollama.NewCLIRuntime(&ollama.Config{
		Binary:  cfg.Runtime.Binary,
		BaseURL: cfg.Runtime.OllamaURL,
	})

	results := []CheckResult{
		checkOS(),
		checkOllamaBinary(cfg.Runtime.Binary),
		checkOllamaService(rt),
		checkDisk(),
		checkChatsDir(cfg.Storage.ChatsDir),
		checkDefaultModel(rt, cfg.Runtime.DefaultModel, *pull),
	}

	failed := false
	for _, r := range results {
		marker := map[string]string{"pass": "ok  ", "warn": "warn", "fail": "FAIL"}[r.Status]
		fmt.Printf("[%s] %-18s %s\n", marker, r.Name, r.Message)
		if r.Fix != "" {
			fmt.Printf("       fix: %s\n", r.Fix)
		}
		if r.Status == "fail" {
			failed = true
		}
	}

	if *initConfig {
		if err := writeDefaultConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
	}

	if failed {
		os.Exit(1)
	}
}

func checkOS() CheckResult {
	return CheckResult{
		Name:    "Operating System",
		Status:  "pass",
		Message: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func checkOllamaBinary(binary string) CheckResult {
	path, err := exec.LookPath(binary)
	if err != nil {
		return CheckResult{
			Name:    "Ollama Binary",
			Status:  "fail",
			Message: fmt.Sprintf("%q not found on PATH", binary),
			Fix:     "Visit https://ollama.ai to install",
		}
	}

	return CheckResult{
		Name:    "Ollama Binary",
		Status:  "pass",
		Message: path,
	}
}

func checkOllamaService(rt ollama.Runtime) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := rt.ListModels(ctx)
	if err != nil {
		return CheckResult{
			Name:    "Ollama Service",
			Status:  "warn",
			Message: "installed but not responding",
			Fix:     "Run: ollama serve",
		}
	}

	return CheckResult{
		Name:    "Ollama Service",
		Status:  "pass",
		Message: fmt.Sprintf("running with %d models", len(models)),
	}
}

func checkDisk() CheckResult {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return CheckResult{Name: "Disk Space", Status: "warn", Message: "could not resolve home directory"}
	}

	free, err := getFreeDiskSpace(homeDir)
	if err != nil {
		return CheckResult{Name: "Disk Space", Status: "warn", Message: "could not read free space"}
	}

	freeGB := float64(free) / (1024 * 1024 * 1024)
	if freeGB < MinDiskSpaceGB {
		return CheckResult{
			Name:    "Disk Space",
			Status:  "warn",
			Message: fmt.Sprintf("%.1f GB free, models may not fit", freeGB),
		}
	}

	return CheckResult{
		Name:    "Disk Space",
		Status:  "pass",
		Message: fmt.Sprintf("%.1f GB free", freeGB),
	}
}

func checkChatsDir(dir string) CheckResult {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return CheckResult{
			Name:    "Chats Directory",
			Status:  "fail",
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return CheckResult{
			Name:    "Chats Directory",
			Status:  "fail",
			Message: fmt.Sprintf("%s is not writable", dir),
		}
	}
	os.Remove(probe)

	return CheckResult{Name: "Chats Directory", Status: "pass", Message: dir}
}

func checkDefaultModel(rt ollama.Runtime, model string, pull bool) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := rt.ListModels(ctx)
	if err != nil {
		return CheckResult{Name: "Default Model", Status: "warn", Message: "service unavailable, skipped"}
	}

	for _, name := range models {
		if name == model {
			return CheckResult{Name: "Default Model", Status: "pass", Message: model + " installed"}
		}
	}

	if !pull {
		return CheckResult{
			Name:    "Default Model",
			Status:  "warn",
			Message: model + " not installed",
			Fix:     "Run: ollamadesk-setup -pull",
		}
	}

	fmt.Printf("Pulling %s (this can take a while)...\n", model)
	pullCtx, pullCancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer pullCancel()

	if err := rt.PullModel(pullCtx, model); err != nil {
		return CheckResult{
			Name:    "Default Model",
			Status:  "fail",
			Message: fmt.Sprintf("pull failed: %v", err),
		}
	}

	return CheckResult{Name: "Default Model", Status: "pass", Message: model + " pulled"}
}

func writeDefaultConfig(cfg *config.Config) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
