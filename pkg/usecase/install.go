package usecase

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/commis-ai/commis/pkg/domain/interfaces"
	"github.com/commis-ai/commis/pkg/domain/model"
	"github.com/commis-ai/commis/pkg/domain/types"
)

type installer struct {
	fetcher     interfaces.Fetcher
	extractor   interfaces.Extractor
	prober      interfaces.VersionProber
	plan        *model.InstallPlan
	scratchRoot string
}

// InstallerOption is a functional option for the installer
type InstallerOption func(*installer)

// WithScratchRoot overrides the parent directory for scratch download and
// extraction directories (defaults to the system temp directory)
func WithScratchRoot(dir string) InstallerOption {
	return func(i *installer) {
		i.scratchRoot = dir
	}
}

// NewInstaller creates an InstallUseCase for the given plan
func NewInstaller(
	fetcher interfaces.Fetcher,
	extractor interfaces.Extractor,
	prober interfaces.VersionProber,
	plan *model.InstallPlan,
	opts ...InstallerOption,
) interfaces.InstallUseCase {
	i := &installer{
		fetcher:   fetcher,
		extractor: extractor,
		prober:    prober,
		plan:      plan,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install runs the pipeline: provision directories, fetch and extract the
// binary archive, install its payload, fetch the voice model files, verify
// the model size, then probe the installed binary. The scratch directory is
// stable per plan and survives a failed archive transfer, so a re-run
// continues the download instead of restarting it; once the transfer has
// completed, scratch state is removed whether or not the later steps succeed.
// A probe failure is reported in the result but does not fail the run.
func (i *installer) Install(ctx context.Context) (*model.InstallReport, error) {
	logger := ctxlog.From(ctx)

	report := &model.InstallReport{
		RunID:           uuid.NewString(),
		BinaryPath:      i.plan.BinaryPath(),
		ModelPath:       i.plan.VoiceModel.Dest,
		ModelConfigPath: i.plan.VoiceConfig.Dest,
	}

	logger.Info("Starting install",
		"run_id", report.RunID,
		"version", i.plan.Version,
		"voice", i.plan.Voice,
		"bin_dir", i.plan.Target.BinDir,
		"model_dir", i.plan.Target.ModelDir,
	)

	// Directory provisioning happens before any network call
	if err := i.ensureDirs(); err != nil {
		return nil, err
	}

	scratch := i.scratchDir()
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create scratch directory",
			goerr.V("dir", scratch), goerr.T(types.ErrTagDirectory))
	}

	// A failed transfer returns here with the partial file still in scratch,
	// so the next run continues from where it stopped
	fetched, err := i.fetchArchive(ctx, scratch)
	if err != nil {
		return nil, err
	}

	// The transfer is complete; from here scratch holds only disposable
	// state and is removed whatever the later steps do
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("Failed to remove scratch directory", "path", scratch, "error", err)
		}
	}()

	installed, err := i.installBinary(ctx, fetched.Path, scratch)
	if err != nil {
		return nil, err
	}
	report.InstalledFiles = installed

	modelSize, err := i.installVoice(ctx)
	if err != nil {
		return nil, err
	}
	report.ModelSize = modelSize

	i.probeBinary(ctx, report)

	logger.Info("Install completed",
		"run_id", report.RunID,
		"binary", report.BinaryPath,
		"model", report.ModelPath,
		"model_size_bytes", report.ModelSize,
		"probe_ok", report.ProbeOK,
	)

	return report, nil
}

// ensureDirs provisions the destination directories, idempotently
func (i *installer) ensureDirs() error {
	for _, dir := range i.plan.Target.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return goerr.Wrap(err, "failed to create install directory",
				goerr.V("dir", dir), goerr.T(types.ErrTagDirectory))
		}
	}
	return nil
}

// scratchDir resolves the stable per-plan scratch directory
func (i *installer) scratchDir() string {
	root := i.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	return filepath.Join(root, i.plan.ScratchDirName())
}

// fetchArchive downloads the release archive into the scratch directory,
// continuing a partial transfer left behind by an earlier run
func (i *installer) fetchArchive(ctx context.Context, scratch string) (*model.FetchResult, error) {
	archive := model.RemoteArtifact{
		URL:  i.plan.Archive.URL,
		Dest: filepath.Join(scratch, i.plan.Archive.Filename),
	}

	fetched, err := i.fetcher.Fetch(ctx, archive)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download binary archive",
			goerr.V("url", archive.URL), goerr.T(types.ErrTagNetwork))
	}

	ctxlog.From(ctx).Info("Fetched binary archive",
		"url", archive.URL,
		"bytes", fetched.Bytes,
		"resumed", fetched.Resumed,
	)

	return fetched, nil
}

// installBinary extracts the fetched archive and copies the payload folder
// into the binary directory
func (i *installer) installBinary(ctx context.Context, archivePath, scratch string) ([]string, error) {
	logger := ctxlog.From(ctx)

	// A crashed earlier run can leave a stale extraction behind in the
	// stable scratch directory
	extractDir := filepath.Join(scratch, "extract")
	if err := os.RemoveAll(extractDir); err != nil {
		return nil, goerr.Wrap(err, "failed to clear extraction directory",
			goerr.V("dir", extractDir), goerr.T(types.ErrTagExtraction))
	}

	if _, err := i.extractor.Extract(ctx, archivePath, extractDir); err != nil {
		return nil, goerr.Wrap(err, "failed to extract binary archive",
			goerr.T(types.ErrTagExtraction))
	}

	payload := filepath.Join(extractDir, i.plan.Archive.PayloadDir)
	if info, err := os.Stat(payload); err != nil || !info.IsDir() {
		return nil, goerr.New("archive payload folder is missing",
			goerr.V("payload", i.plan.Archive.PayloadDir),
			goerr.T(types.ErrTagExtraction))
	}

	installed, err := i.installPayload(payload)
	if err != nil {
		return nil, err
	}

	logger.Info("Installed binary payload",
		"bin_dir", i.plan.Target.BinDir,
		"files", len(installed),
	)

	return installed, nil
}

// installPayload copies the payload folder contents into the binary
// directory, preserving relative structure, and marks the binary executable
func (i *installer) installPayload(payloadDir string) ([]string, error) {
	var installed []string

	err := filepath.WalkDir(payloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(payloadDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		destPath := filepath.Join(i.plan.Target.BinDir, rel)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(destPath)
			if err := os.Symlink(target, destPath); err != nil {
				return err
			}
			installed = append(installed, rel)
			return nil
		}

		if err := copyFile(path, destPath); err != nil {
			return err
		}
		installed = append(installed, rel)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to install archive payload",
			goerr.V("bin_dir", i.plan.Target.BinDir), goerr.T(types.ErrTagExtraction))
	}

	if err := os.Chmod(i.plan.BinaryPath(), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to mark binary executable",
			goerr.V("binary", i.plan.BinaryPath()), goerr.T(types.ErrTagExtraction))
	}

	return installed, nil
}

// installVoice fetches the voice model and its config, then verifies the
// model's size floor. Fetch failures are deferred to the size check so a
// model left behind by an earlier run still counts.
func (i *installer) installVoice(ctx context.Context) (int64, error) {
	logger := ctxlog.From(ctx)

	var fetchErr error
	for _, artifact := range []model.RemoteArtifact{i.plan.VoiceModel, i.plan.VoiceConfig} {
		if _, err := i.fetcher.Fetch(ctx, artifact); err != nil {
			logger.Error("Failed to download voice artifact",
				"url", artifact.URL,
				"error", err,
			)
			if fetchErr == nil {
				fetchErr = err
			}
		}
	}

	info, err := os.Stat(i.plan.VoiceModel.Dest)
	if err != nil {
		return 0, goerr.Wrap(errOrFetch(err, fetchErr), "voice model is not installed",
			goerr.V("path", i.plan.VoiceModel.Dest),
			goerr.V("cause", "absent"),
			goerr.T(types.ErrTagIntegrity))
	}
	if info.Size() < i.plan.VoiceModel.MinSize {
		return 0, goerr.New("voice model is below the minimum size",
			goerr.V("path", i.plan.VoiceModel.Dest),
			goerr.V("size_bytes", info.Size()),
			goerr.V("min_bytes", i.plan.VoiceModel.MinSize),
			goerr.V("cause", "truncated"),
			goerr.T(types.ErrTagIntegrity))
	}

	return info.Size(), nil
}

// probeBinary runs the post-install version probe. Failure is non-fatal and
// only recorded in the report.
func (i *installer) probeBinary(ctx context.Context, report *model.InstallReport) {
	logger := ctxlog.From(ctx)

	version, err := i.prober.Probe(ctx, report.BinaryPath)
	if err != nil {
		logger.Warn("Installed binary failed its version probe; a shared library "+
			"dependency (libespeak-ng, onnxruntime) may be missing",
			"binary", report.BinaryPath,
			"error", err,
		)
		return
	}

	report.ProbeOK = true
	report.ProbeOutput = version
}

// errOrFetch prefers the stat error unless a fetch error explains it
func errOrFetch(statErr, fetchErr error) error {
	if fetchErr != nil {
		return fetchErr
	}
	return statErr
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
