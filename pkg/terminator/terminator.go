/*
 * Copyright 2025 the NannyAI Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package terminator stops an offending program identified by the
// analyzer. Program names coming out of a vision model rarely match
// process names exactly, so matching is fuzzy, and a protected-process
// list guards against terminating anything the OS needs.
package terminator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/elabbarw/nannyai/pkg/logger"
)

const (
	// minSimilarity is the cutoff for accepting a fuzzy process match.
	minSimilarity = 0.6

	terminateWait = 3 * time.Second
	pollInterval  = 100 * time.Millisecond
)

var (
	ErrNoMatch          = errors.New("no matching process found")
	ErrProtectedProcess = errors.New("refusing to terminate protected process")

	errEmptyProgramName = errors.New("empty program name")

	extensionPattern = regexp.MustCompile(`\.(exe|app|dmg|dll)$`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-z0-9]`)

	protectedProcesses = []string{
		"system",
		"systemd",
		"explorer.exe",
		"finder",
		"windows defender",
		"antivirus",
	}
)

// ProcessTerminator terminates programs on the local machine.
type ProcessTerminator struct {
	logger logger.Logger
}

func New(log logger.Logger) *ProcessTerminator {
	return &ProcessTerminator{logger: log}
}

// Terminate finds the running process closest to programName and stops
// it, escalating to a kill if it does not exit within terminateWait.
// Returns the name of the process actually terminated.
func (t *ProcessTerminator) Terminate(ctx context.Context, programName string) (string, error) {
	if programName == "" {
		return "", errEmptyProgramName
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, len(procs))

	for i, p := range procs {
		// Permission errors on individual processes are normal; they
		// just cannot match.
		if name, nameErr := p.NameWithContext(ctx); nameErr == nil {
			names[i] = name
		}
	}

	idx, ok := matchProgram(programName, names)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, programName)
	}

	matched := names[idx]
	proc := procs[idx]

	if !safeToTerminate(matched) {
		t.logger.Warn().Str("process", matched).Str("target", programName).
			Msg("Attempted to terminate protected process")

		return "", fmt.Errorf("%w: %s", ErrProtectedProcess, matched)
	}

	t.logger.Info().Str("process", matched).Int32("pid", proc.Pid).Str("target", programName).
		Msg("Terminating program")

	if err := proc.TerminateWithContext(ctx); err != nil {
		return "", fmt.Errorf("failed to terminate %s: %w", matched, err)
	}

	if t.waitForExit(ctx, proc) {
		return matched, nil
	}

	if err := proc.KillWithContext(ctx); err != nil {
		return "", fmt.Errorf("failed to kill %s: %w", matched, err)
	}

	t.logger.Info().Str("process", matched).Msg("Force killed program")

	return matched, nil
}

func (t *ProcessTerminator) waitForExit(ctx context.Context, proc *process.Process) bool {
	deadline := time.Now().Add(terminateWait)

	for time.Now().Before(deadline) {
		running, err := proc.IsRunningWithContext(ctx)
		if err != nil || !running {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}

	return false
}

// matchProgram returns the index of the candidate most similar to the
// target, or false if nothing clears the similarity cutoff.
func matchProgram(target string, candidates []string) (int, bool) {
	normalizedTarget := normalizeProgramName(target)
	if normalizedTarget == "" {
		return 0, false
	}

	bestIdx := -1
	bestScore := 0.0

	for i, candidate := range candidates {
		normalized := normalizeProgramName(candidate)
		if normalized == "" {
			continue
		}

		score := similarity(normalizedTarget, normalized)
		if score >= minSimilarity && score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestIdx < 0 {
		return 0, false
	}

	return bestIdx, true
}

// normalizeProgramName strips common executable extensions and all
// non-alphanumeric characters so "Google Chrome.exe" matches "chrome".
func normalizeProgramName(name string) string {
	name = extensionPattern.ReplaceAllString(strings.ToLower(name), "")

	return nonAlnumPattern.ReplaceAllString(name, "")
}

func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)

	return 1 - float64(distance)/float64(maxLen)
}

func safeToTerminate(processName string) bool {
	lower := strings.ToLower(processName)

	for _, protected := range protectedProcesses {
		if strings.Contains(lower, protected) {
			return false
		}
	}

	return true
}
