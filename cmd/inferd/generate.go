package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

var (
	genAddr        string
	genModel       string
	genStream      bool
	genMaxTokens   int
	genTemperature float64
	genSeed        int64
	genTimeout     time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt...]",
	Short: "Request a completion from a running daemon",
	Example: `  inferd generate "Write a haiku about the ocean."
  inferd generate --model tinyllama-q4.gguf --max-tokens 64 Tell me a joke`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genAddr, "addr", envOr("INFERD_ADDR", "http://127.0.0.1:8080"), "daemon base URL")
	f.StringVar(&genModel, "model", "", "model id (daemon default when empty)")
	f.BoolVar(&genStream, "stream", true, "print tokens as they arrive")
	f.IntVar(&genMaxTokens, "max-tokens", 0, "maximum new tokens (daemon default when 0)")
	f.Float64Var(&genTemperature, "temperature", 0, "sampling temperature")
	f.Int64Var(&genSeed, "seed", 0, "random seed, 0 lets the engine choose")
	f.DurationVar(&genTimeout, "timeout", 5*time.Minute, "request timeout")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(types.GenerateRequest{
		Model:       genModel,
		Prompt:      strings.Join(args, " "),
		Stream:      genStream,
		MaxTokens:   genMaxTokens,
		Temperature: genTemperature,
		Seed:        genSeed,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(genAddr, "/v1/generate"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	if !genStream {
		var out types.GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		fmt.Println(out.Content)
		return nil
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var final types.FinalLine
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Token string `json:"token"`
			Done  bool   `json:"done"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return fmt.Errorf("bad stream line: %w", err)
		}
		if probe.Done {
			if err := json.Unmarshal(line, &final); err != nil {
				return err
			}
			break
		}
		fmt.Print(probe.Token)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Println()
	if final.FinishReason != "" && final.FinishReason != "stop" {
		fmt.Fprintln(os.Stderr, "finish_reason:", final.FinishReason)
	}
	return nil
}

func apiURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func apiError(resp *http.Response) error {
	var e types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("%s (status %d)", e.Error, e.Code)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
