package update

import (
	"runtime"
	"strings"
)

type Package uint8

const (
	Gupax Package = iota
	P2pool
	Xmrig
)

var Packages = [...]Package{Gupax, P2pool, Xmrig}

// Versions bundled with a release.
const (
	BundledP2poolVersion = "v2.4"
	BundledXmrigVersion  = "v6.18.0"
)

func (p Package) String() string {
	switch p {
	case Gupax:
		return "Gupax"
	case P2pool:
		return "P2Pool"
	case Xmrig:
		return "XMRig"
	default:
		return "Unknown"
	}
}

// name is the lowercase form used in archive and binary names.
func (p Package) name() string {
	return strings.ToLower(p.String())
}

// Binary is the basename the package's executable must have.
func (p Package) Binary() string {
	if runtime.GOOS == "windows" {
		return p.name() + ".exe"
	}
	return p.name()
}

func (p Package) repository() string {
	switch p {
	case Gupax:
		return "hinto-janaiyo/gupax"
	case P2pool:
		return "SChernykh/p2pool"
	default:
		return "xmrig/xmrig"
	}
}

// MetadataUrl is where the latest release of p is described.
func (p Package) MetadataUrl() string {
	return "https://api.github.com/repos/" + p.repository() + "/releases/latest"
}

// DownloadPrefix is the part of every release download link before the tag.
func (p Package) DownloadPrefix() string {
	return "https://github.com/" + p.repository() + "/releases/download/"
}

// Suffix is the platform dependent end of the archive name.
func (p Package) Suffix() string {
	return suffix(p, runtime.GOOS)
}

func suffix(p Package, goos string) string {
	switch goos {
	case "windows":
		switch p {
		case Gupax:
			return "-windows-x64-standalone.zip"
		case P2pool:
			return "-windows-x64.zip"
		default:
			return "-msvc-win64.zip"
		}
	case "darwin":
		switch p {
		case Gupax:
			return "-macos-x64-standalone.tar.gz"
		default:
			return "-macos-x64.tar.gz"
		}
	default:
		switch p {
		case Gupax:
			return "-linux-x64-standalone.tar.gz"
		case P2pool:
			return "-linux-x64.tar.gz"
		default:
			return "-linux-static-x64.tar.gz"
		}
	}
}

// DownloadLink builds the archive link of tag below prefix.
// XMRig archives carry the version without its leading v.
func (p Package) DownloadLink(prefix, tag string) string {
	version := tag
	if p == Xmrig {
		version = strings.TrimPrefix(tag, "v")
	}
	return prefix + tag + "/" + p.name() + "-" + version + p.Suffix()
}

// ValidTag reports whether tag looks like a release tag, "v" followed by a digit.
func ValidTag(tag string) bool {
	return len(tag) >= 2 && tag[0] == 'v' && tag[1] >= '0' && tag[1] <= '9'
}
