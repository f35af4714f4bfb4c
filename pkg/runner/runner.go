// Package runner executes one stage of one job: it writes the stage's
// inventory documents (built by pkg/inventory) to disk, mounts its credential
// into a scoped secret file, spawns the playbook subprocess, streams its
// output to the job's event bus and the topology store, and guarantees the
// secret file is gone before it returns on every exit path — success,
// failure, cancellation, or panic.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/ridge/pkg/collaborators"
	"github.com/cuemby/ridge/pkg/events"
	"github.com/cuemby/ridge/pkg/inventory"
	"github.com/cuemby/ridge/pkg/storage"
	"github.com/cuemby/ridge/pkg/types"
)

// Runner executes playbook subprocesses on behalf of the orchestrator.
type Runner struct {
	store       storage.Store
	events      *events.Registry
	process     collaborators.PlaybookProcess
	credentials collaborators.CredentialStore
	renderer    *inventory.Renderer
	playbookDir string
}

// New returns a Runner wired to its collaborators.
func New(store storage.Store, registry *events.Registry, process collaborators.PlaybookProcess, credentials collaborators.CredentialStore, renderer *inventory.Renderer, playbookDir string) *Runner {
	return &Runner{
		store:       store,
		events:      registry,
		process:     process,
		credentials: credentials,
		renderer:    renderer,
		playbookDir: playbookDir,
	}
}

// StageInput describes one stage execution: the rendered inventory
// documents plus the credential to mount for host access.
type StageInput struct {
	JobID        string
	PlaybookName string // filename under the configured playbook directory
	Doc          *inventory.Document
	Vars         inventory.ExtraVars
	CredentialID string
}

// Run renders the stage's documents, mounts its credential into a scoped
// secret file, spawns the playbook subprocess, and streams its output to
// the job's event bus and persisted output buffer until the process exits
// or ctx is cancelled. The secret file and the job's working directory are
// always removed before Run returns.
func (r *Runner) Run(ctx context.Context, in StageInput) (exitCode int, err error) {
	bus := r.events.GetOrCreate(in.JobID)

	inventoryPath, extrasPath, err := r.renderer.Render(in.JobID, in.Doc, in.Vars)
	if err != nil {
		return -1, fmt.Errorf("failed to render stage documents: %w", err)
	}
	defer func() {
		if cleanupErr := r.renderer.Cleanup(in.JobID); cleanupErr != nil {
			r.appendLine(bus, in.JobID, fmt.Sprintf("warning: failed to clean up job working directory: %v", cleanupErr))
		}
	}()

	secretPath, err := r.mountCredential(ctx, in.JobID, in.CredentialID)
	if err != nil {
		return -1, fmt.Errorf("failed to mount credential: %w", err)
	}
	defer r.cleanupSecret(secretPath)

	spec := collaborators.Spec{
		PlaybookPath:   filepath.Join(r.playbookDir, in.PlaybookName),
		InventoryPath:  inventoryPath,
		ExtrasPath:     extrasPath,
		PrivateKeyPath: secretPath,
	}

	handle, err := r.process.Spawn(ctx, spec)
	if err != nil {
		return -1, fmt.Errorf("failed to spawn playbook process: %w", err)
	}

	done := make(chan struct{})
	var waitCode int
	var waitErr error
	go func() {
		waitCode, waitErr = handle.Wait()
		close(done)
	}()

	index := nextIndex(bus)
	for {
		select {
		case line, ok := <-handle.Output():
			if !ok {
				<-done
				return waitCode, waitErr
			}
			r.appendIndexed(bus, in.JobID, &index, line)

		case <-ctx.Done():
			collaborators.TerminateGracefully(handle)
			<-done
			return waitCode, ctx.Err()

		case <-done:
			// Drain any remaining buffered lines before returning.
			for {
				select {
				case line, ok := <-handle.Output():
					if !ok {
						return waitCode, waitErr
					}
					r.appendIndexed(bus, in.JobID, &index, line)
				default:
					return waitCode, waitErr
				}
			}
		}
	}
}

func (r *Runner) appendIndexed(bus *events.Bus, jobID string, index *int, text string) {
	chunk := types.OutputChunk{Index: *index, Text: text, Timestamp: time.Now()}
	*index++
	bus.Publish(chunk)
	if err := r.store.AppendJobOutput(jobID, chunk); err != nil {
		// The in-memory bus already has the chunk; a store append failure
		// degrades durability for this line but must not stop the stream.
		bus.Publish(types.OutputChunk{Index: *index, Text: fmt.Sprintf("warning: failed to persist output: %v", err), Timestamp: time.Now()})
		*index++
	}
}

func (r *Runner) appendLine(bus *events.Bus, jobID, text string) {
	index := nextIndex(bus)
	r.appendIndexed(bus, jobID, &index, text)
}

// nextIndex returns the index following every chunk already published on
// bus, so a job's chunk numbering continues across its stages.
func nextIndex(bus *events.Bus) int {
	snapshot, _, cancel := bus.Subscribe()
	cancel()
	return len(snapshot)
}

// mountCredential fetches and decrypts the stage's credential and writes
// it to a job-scoped secret file with owner-only permissions, cleaned up
// on any error path. A password credential is written to the same path
// and, like a key, handed to the playbook as its private-key file; the
// credential kind is not passed on.
func (r *Runner) mountCredential(ctx context.Context, jobID, credentialID string) (string, error) {
	if credentialID == "" {
		return "", nil
	}

	dir, err := r.renderer.WorkDir(jobID)
	if err != nil {
		return "", err
	}

	_, secretMaterial, _, err := r.credentials.Fetch(ctx, credentialID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "credential.secret")
	if err := os.WriteFile(path, secretMaterial, 0400); err != nil {
		return "", fmt.Errorf("failed to write scoped secret file: %w", err)
	}
	return path, nil
}

func (r *Runner) cleanupSecret(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
