package filter

// DefaultMaxFileSize is the largest file eligible for upload (1MB).
const DefaultMaxFileSize int64 = 1024 * 1024

// DefaultExtensions are the file types synced by default, without the dot.
var DefaultExtensions = []string{
	// Code
	"py", "ts", "tsx", "js", "jsx", "go", "java", "scala", "rb", "php", "cs",
	"cpp", "c", "h", "hpp", "hxx", "cc", "hh", "cxx", "m", "mm", "swift",
	"rs", "kt", "kts", "clj", "cljc", "cljs",

	// Docs and markup
	"md", "html", "css", "scss", "less", "sass", "txt",

	// Data/Config
	"json", "yaml", "yml", "xml", "toml", "ini", "conf", "config", "dockerfile",

	// Shell
	"sh", "bash", "zsh", "fish", "bat", "ps1", "psm1",
}

// DefaultLockFiles are package-manager artifacts never worth uploading.
var DefaultLockFiles = []string{
	"package-lock.json",
	"yarn.lock",
}

// DefaultPrunedDirs are directory names the walker never descends into.
var DefaultPrunedDirs = []string{
	".git",
	"node_modules",
	"build",
	"out",
}

// DefaultVCSDirs are the directories whose contents the watcher never reports.
var DefaultVCSDirs = []string{
	".git",
	"node_modules",
}

// DefaultIgnorePatterns match generated, vendored and tool-owned directories.
// They are applied to "/" + the root-relative slash path, so a directory
// above the root can never cause a match.
var DefaultIgnorePatterns = []string{
	// Build output and dependency caches
	`/python\d\.\d/`,
	`/dist/`,
	`/bin/`,
	`/lib/`,
	`/build/`,
	`/\.egg-info/`,
	`/\.venv/`,
	`/node_modules/`,
	`/__pycache__/`,

	// IDE metadata
	`/\.vscode/`,
	`/\.idea/`,
	`/\.vs/`,
	`/\.vscode-test/`,
	`/\.history/`,

	// Framework and language caches
	`/\.next/`,
	`/\.nuxt/`,
	`/\.cache/`,
	`/\.sass-cache/`,
	`/\.gradle/`,
	`/\.DS_Store/`,
	`/\.ipynb_checkpoints/`,
	`/\.pytest_cache/`,
	`/\.mypy_cache/`,
	`/\.tox/`,
	`/\.Python/`,
	`/\.jupyter/`,
	`/\.yarn/`,
	`/\.yarn-cache/`,
	`/\.eslintcache/`,
	`/\.parcel-cache/`,
	`/\.cache-loader/`,
	`/\.nyc_output/`,
	`/\.node_repl_history/`,
	`/\.pnp\.js/`,
	`/\.pnp/`,
	`/\.lock-wscript/`,
	`/\.wafpickle-[0-9]*/`,
	`/\.lock-waf_[0-9]*/`,

	// VCS internals
	`/\.git/`,
	`/\.hg/`,
	`/\.svn/`,
	`/\.bzr/`,
}
