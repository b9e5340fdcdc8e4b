package assets

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// FileType is the coarse classification of an asset file.
type FileType string

const (
	TypeMayaASCII  FileType = "maya_ascii"
	TypeMayaBinary FileType = "maya_binary"
	TypeFBX        FileType = "fbx"
	TypeOBJ        FileType = "obj"
	TypeAlembic    FileType = "alembic"
	TypeUSD        FileType = "usd"
	TypeGLTF       FileType = "gltf"
	TypeScene      FileType = "scene_json"
	TypeImage      FileType = "image"
	TypeOther      FileType = "other"
)

// sceneDocumentSuffix marks JSON scene documents (e.g. "crate.scene.json").
const sceneDocumentSuffix = ".scene.json"

var extensionTypes = map[string]FileType{
	".ma":   TypeMayaASCII,
	".mb":   TypeMayaBinary,
	".fbx":  TypeFBX,
	".obj":  TypeOBJ,
	".abc":  TypeAlembic,
	".usd":  TypeUSD,
	".usda": TypeUSD,
	".usdc": TypeUSD,
	".usdz": TypeUSD,
	".gltf": TypeGLTF,
	".glb":  TypeGLTF,
}

// Magic-byte matchers for binary DCC formats that filetype does not know.
var (
	mayaBinaryKind = filetype.NewType("mb", "application/x-maya-binary")
	fbxKind        = filetype.NewType("fbx", "application/x-fbx")
	alembicKind    = filetype.NewType("abc", "application/x-alembic")
	usdcKind       = filetype.NewType("usdc", "application/x-usd-crate")
	glbKind        = filetype.NewType("glb", "model/gltf-binary")
)

var kindTypes = map[string]FileType{
	"mb":   TypeMayaBinary,
	"fbx":  TypeFBX,
	"abc":  TypeAlembic,
	"usdc": TypeUSD,
	"glb":  TypeGLTF,
}

func init() {
	filetype.AddMatcher(mayaBinaryKind, func(buf []byte) bool {
		// IFF container: FOR4/FOR8 chunk followed by a Maya form type.
		if len(buf) < 12 {
			return false
		}
		form := string(buf[0:4])
		if form != "FOR4" && form != "FOR8" {
			return false
		}
		return bytes.Contains(buf[:min(len(buf), 32)], []byte("Maya"))
	})
	filetype.AddMatcher(fbxKind, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("Kaydara FBX Binary"))
	})
	filetype.AddMatcher(alembicKind, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("Ogawa"))
	})
	filetype.AddMatcher(usdcKind, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("PXR-USDC"))
	})
	filetype.AddMatcher(glbKind, func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("glTF"))
	})
}

// sniffLen is how much of a file is read for magic-byte matching.
const sniffLen = 262

// ClassifyPath returns the type implied by the file name alone.
func ClassifyPath(path string) FileType {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, sceneDocumentSuffix) {
		return TypeScene
	}
	if t, ok := extensionTypes[filepath.Ext(lower)]; ok {
		return t
	}
	switch filepath.Ext(lower) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".exr", ".tga", ".webp":
		return TypeImage
	}
	return TypeOther
}

// ClassifyHeader classifies a file from its leading bytes. It returns
// TypeOther when nothing matches.
func ClassifyHeader(header []byte) FileType {
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return TypeOther
	}
	if t, ok := kindTypes[kind.Extension]; ok {
		return t
	}
	if filetype.IsImage(header) {
		return TypeImage
	}
	return TypeOther
}

// Classify combines the extension with a magic-byte sniff. Magic bytes win
// when the extension is unknown or contradicts a binary signature.
func Classify(path string) FileType {
	byName := ClassifyPath(path)

	f, err := os.Open(path)
	if err != nil {
		return byName
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, _ := f.Read(header)
	byContent := ClassifyHeader(header[:n])

	if byContent == TypeOther {
		return byName
	}
	return byContent
}

// IsAsset reports whether the type is a 3D asset the engine can be asked about.
func (t FileType) IsAsset() bool {
	switch t {
	case TypeImage, TypeOther, "":
		return false
	}
	return true
}
