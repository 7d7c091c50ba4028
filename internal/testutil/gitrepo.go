package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Repo is a git repository created for a test.
type Repo struct {
	t    *testing.T
	Dir  string
	repo *git.Repository
	// clock advances one minute per commit so history order is deterministic.
	clock time.Time
}

// NewRepo initialises an empty repository in dir.
func NewRepo(t *testing.T, dir string) *Repo {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	return &Repo{
		t:     t,
		Dir:   dir,
		repo:  repo,
		clock: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// RequireGit skips the test when the git executable, used by go-git's local
// transport, is unavailable.
func RequireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

// WriteFile creates or replaces a file relative to the repository root.
func (r *Repo) WriteFile(rel, contents string) {
	r.t.Helper()

	path := filepath.Join(r.Dir, filepath.FromSlash(rel))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(contents), 0o644))
}

// Commit stages everything and records a commit.
func (r *Repo) Commit(message string) plumbing.Hash {
	r.t.Helper()

	worktree, err := r.repo.Worktree()
	require.NoError(r.t, err)
	require.NoError(r.t, worktree.AddWithOptions(&git.AddOptions{All: true}))

	r.clock = r.clock.Add(time.Minute)

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author:            r.signature(),
		AllowEmptyCommits: true,
	})
	require.NoError(r.t, err)

	return hash
}

// CommitOn records a commit with the given parents and moves HEAD to it.
// Two parents make a merge commit.
func (r *Repo) CommitOn(message string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()

	worktree, err := r.repo.Worktree()
	require.NoError(r.t, err)
	require.NoError(r.t, worktree.AddWithOptions(&git.AddOptions{All: true}))

	r.clock = r.clock.Add(time.Minute)

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author:            r.signature(),
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	require.NoError(r.t, err)

	return hash
}

// Tag creates a lightweight tag on HEAD.
func (r *Repo) Tag(name string) {
	r.t.Helper()

	head, err := r.repo.Head()
	require.NoError(r.t, err)

	_, err = r.repo.CreateTag(name, head.Hash(), nil)
	require.NoError(r.t, err)
}

// AnnotatedTag creates an annotated tag on HEAD.
func (r *Repo) AnnotatedTag(name string) {
	r.t.Helper()

	head, err := r.repo.Head()
	require.NoError(r.t, err)

	_, err = r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  r.signature(),
		Message: "release " + name,
	})
	require.NoError(r.t, err)
}

// Head returns the hash of HEAD.
func (r *Repo) Head() plumbing.Hash {
	r.t.Helper()

	head, err := r.repo.Head()
	require.NoError(r.t, err)

	return head.Hash()
}

func (r *Repo) signature() *object.Signature {
	return &object.Signature{
		Name:  "Packager Test",
		Email: "packager@example.com",
		When:  r.clock,
	}
}

// CubeLayout writes a miniature STM32Cube tree for family (e.g. "F4") and commits it.
func (r *Repo) CubeLayout(family string) plumbing.Hash {
	r.t.Helper()

	lower := strings.ToLower(family)
	hal := "Drivers/STM32" + family + "xx_HAL_Driver/Inc/"

	files := map[string]string{
		hal + "stm32" + lower + "xx_hal.h":                   "hal",
		hal + "stm32" + lower + "xx_hal_conf_template.h":     "conf template " + family,
		"Drivers/CMSIS/Include/core_cm4.h":                   "core",
		"Drivers/CMSIS/docs/index.html":                      "docs",
		"Drivers/CMSIS/Lib/ARM/arm_cortexM4lf_math.lib":      "arm",
		"Drivers/CMSIS/Lib/GCC/libarm_cortexM0l_math.a":      "m0",
		"Drivers/CMSIS/DSP/Lib/GCC/libarm_cortexM4lf_math.a": "m4",
		"Drivers/CMSIS/DSP/Lib/IAR/iar_cortexM4lf_math.a":    "iar",
		"Drivers/CMSIS/DSP/Projects/ARM/arm.uvprojx":         "proj",
		"Drivers/CMSIS/DSP/DSP_Lib_TestSuite/readme.txt":     "suite",
		"Drivers/CMSIS/DSP/Source/arm_math.c":                "src",
		"Middlewares/Third_Party/FreeRTOS/Source/tasks.c":    "tasks",
		"Middlewares/Third_Party/LwIP/doc/rawapi.txt":        "lwip doc",
		"Middlewares/Third_Party/LwIP/src/core/tcp.c":        "tcp",
		"Utilities/CPU/cpu_utils.c":                          "cpu",
		"Utilities/Media/Video/big.avi":                      "video",
		"Projects/NUCLEO/Examples/main.c":                    "example",
		"Documentation/manual.chm":                           "manual",
		"package.xml":                                        "<PackDescription/>",
		"Release_Notes.html":                                 "<html/>",
		"License.md":                                         "license",
	}

	for rel, contents := range files {
		r.WriteFile(rel, contents)
	}

	return r.Commit("import STM32Cube" + family)
}
