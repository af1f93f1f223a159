package filter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, root string, opts Options) *Filter {
	t.Helper()
	f, err := New(root, opts)
	require.NoError(t, err)
	return f
}

func TestFilter_IsEligible(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	f := newTestFilter(t, root, Options{})

	tests := []struct {
		name string
		path string
		size int64
		want bool
	}{
		{name: "python file", path: "a.py", size: 50, want: true},
		{name: "nested go file", path: "pkg/sync/run.go", size: 10, want: true},
		{name: "absolute path under root", path: filepath.Join(root, "src", "main.ts"), size: 10, want: true},
		{name: "dockerfile basename", path: "deploy/Dockerfile", size: 10, want: true},
		{name: "upper case extension", path: "README.MD", size: 10, want: true},
		{name: "unsupported extension", path: "b.png", size: 10, want: false},
		{name: "no extension", path: "LICENSE", size: 10, want: false},
		{name: "package lock", path: "web/package-lock.json", size: 10, want: false},
		{name: "yarn lock", path: "yarn.lock", size: 10, want: false},
		{name: "hidden file", path: ".env.json", size: 10, want: false},
		{name: "hidden directory", path: ".github/workflows/ci.yml", size: 10, want: false},
		{name: "node_modules", path: "node_modules/c.js", size: 10, want: false},
		{name: "nested dist", path: "web/dist/bundle.js", size: 10, want: false},
		{name: "python venv lib", path: "env/lib/python3.9/site.py", size: 10, want: false},
		{name: "pycache", path: "pkg/__pycache__/mod.py", size: 10, want: false},
		{name: "waf pickle", path: "x/.wafpickle-12/a.py", size: 10, want: false},
		{name: "library segment only matches whole names", path: "library/a.py", size: 10, want: true},
		{name: "at size limit", path: "big.py", size: DefaultMaxFileSize, want: true},
		{name: "over size limit", path: "big.py", size: DefaultMaxFileSize + 1, want: false},
		{name: "root itself", path: root, size: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsEligible(tt.path, tt.size))
		})
	}
}

func TestFilter_IsEligible_RootAncestorsNeverMatch(t *testing.T) {
	// The root lives under directories the pattern library would reject.
	root := filepath.FromSlash("/home/me/.cache/build/repo")
	f := newTestFilter(t, root, Options{})

	assert.True(t, f.IsEligible(filepath.Join(root, "a.py"), 1))
	assert.False(t, f.IsEligible(filepath.Join(root, "build", "a.py"), 1))
}

func TestFilter_IsEligible_IsPure(t *testing.T) {
	f := newTestFilter(t, "/repo", Options{})
	paths := []string{"a.py", "b.png", "node_modules/x.js", ".hidden/y.go", "ok/z.rs"}

	for _, p := range paths {
		first := f.IsEligible(p, 100)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, f.IsEligible(p, 100), p)
		}
	}
}

func TestFilter_CustomOptions(t *testing.T) {
	f := newTestFilter(t, "/repo", Options{
		Extensions:     []string{".PY", "go"},
		IgnorePatterns: []string{`/generated/`},
		LockFiles:      []string{"go.sum"},
		MaxFileSize:    10,
	})

	assert.True(t, f.IsEligible("a.py", 10))
	assert.False(t, f.IsEligible("a.py", 11))
	assert.False(t, f.IsEligible("a.ts", 1), "extension list replaces defaults")
	assert.False(t, f.IsEligible("api/generated/client.go", 1))
	assert.Equal(t, int64(10), f.MaxFileSize())
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New("/repo", Options{IgnorePatterns: []string{"("}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore pattern")
}

func TestFilter_IsExcludedDirectory(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	f := newTestFilter(t, root, Options{})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "root", path: root, want: false},
		{name: "plain file", path: filepath.Join(root, "a.py"), want: false},
		{name: "git directory itself", path: filepath.Join(root, ".git"), want: false},
		{name: "node_modules itself", path: filepath.Join(root, "web", "node_modules"), want: false},
		{name: "inside git", path: filepath.Join(root, ".git", "HEAD"), want: true},
		{name: "inside node_modules", path: filepath.Join(root, "node_modules", "x", "index.js"), want: true},
		{name: "substring is not a segment", path: filepath.Join(root, "my_node_modules_notes", "a.md"), want: false},
		{name: "gitignore file", path: filepath.Join(root, ".gitignore"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsExcludedDirectory(tt.path))
		})
	}
}

func TestFilter_IsExcludedDirectory_RootNamedLikeExcludedDir(t *testing.T) {
	root := filepath.FromSlash("/work/node_modules")
	f := newTestFilter(t, root, Options{})

	assert.False(t, f.IsExcludedDirectory(root))
	assert.False(t, f.IsExcludedDirectory(filepath.Join(root, "pkg", "a.js")))
	assert.True(t, f.IsExcludedDirectory(filepath.Join(root, "pkg", "node_modules", "a.js")))
}

func TestFilter_IsExcludedDirName(t *testing.T) {
	f := newTestFilter(t, "/repo", Options{})

	for _, name := range []string{".git", "node_modules", "build", "out"} {
		assert.True(t, f.IsExcludedDirName(name), name)
	}
	for _, name := range []string{"src", "output", "git"} {
		assert.False(t, f.IsExcludedDirName(name), name)
	}
}

func TestFilter_IsVCSDirName(t *testing.T) {
	f := newTestFilter(t, "/repo", Options{})

	assert.True(t, f.IsVCSDirName(".git"))
	assert.True(t, f.IsVCSDirName("node_modules"))
	assert.False(t, f.IsVCSDirName("build"), "build is pruned by the walker but still watched")
}

func TestFilter_PrunesDirectory(t *testing.T) {
	f := newTestFilter(t, "/repo", Options{})

	assert.True(t, f.PrunesDirectory(".idea"))
	assert.True(t, f.PrunesDirectory("web/dist"))
	assert.True(t, f.PrunesDirectory("pkg/__pycache__"))
	assert.False(t, f.PrunesDirectory("src"))
	assert.False(t, f.PrunesDirectory("distribution"))
	assert.False(t, f.PrunesDirectory("."))
}
