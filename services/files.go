package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"

	"waveanalyzer/logger"
	"waveanalyzer/types"
)

// UploadURLPrefix is the route uploaded audio is served from
const UploadURLPrefix = "/uploads/"

var (
	trackNumberPrefix = regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)
	uploadPrefix      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}_`)
)

// FileService interface defines methods for upload storage
type FileService interface {
	Root() string
	SaveUpload(name string, r io.Reader) (*types.AudioFile, error)
	ResolvePath(relPath string) (string, error)
	SongURL(file *types.AudioFile) string
	ScanAudioFiles(rootPath string) ([]types.AudioFile, error)
	ExtractAudioMetadata(filePath string) *types.AudioMetadata
	ValidateFilePath(path string) error
	GetContentType(filePath string) string
}

// fileService implements the FileService interface
type fileService struct {
	root string
}

// NewFileService creates a file service storing uploads under root
func NewFileService(root string) FileService {
	return &fileService{root: root}
}

// Root returns the upload directory
func (fs *fileService) Root() string {
	return fs.root
}

// IsAudioFile reports whether name has an extension the decoder accepts
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".wav" || ext == ".mp3"
}

// OriginalName strips the "<uuid>_" prefix SaveUpload adds
func OriginalName(stored string) string {
	base := filepath.Base(stored)
	return uploadPrefix.ReplaceAllString(base, "")
}

// SaveUpload writes r to "<uuid>_<name>" under the upload directory
func (fs *fileService) SaveUpload(name string, r io.Reader) (*types.AudioFile, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	if !IsAudioFile(base) {
		return nil, fmt.Errorf("unsupported file type %q: only .wav and .mp3 are accepted", filepath.Ext(base))
	}

	if err := os.MkdirAll(fs.root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	stored := uuid.New().String() + "_" + base
	fullPath := filepath.Join(fs.root, stored)
	out, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	logger.Infof("Saved upload %s (%d bytes)", stored, size)
	return &types.AudioFile{
		Filename: base,
		Path:     stored,
		Size:     size,
		Format:   formatOf(base),
		Metadata: fs.ExtractAudioMetadata(fullPath),
	}, nil
}

// ResolvePath validates a path relative to the upload directory and returns
// the absolute file path
func (fs *fileService) ResolvePath(relPath string) (string, error) {
	relPath = strings.TrimPrefix(relPath, "/")
	if err := fs.ValidateFilePath(relPath); err != nil {
		return "", err
	}

	absRoot, err := filepath.Abs(fs.root)
	if err != nil {
		return "", fmt.Errorf("server configuration error: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(fs.root, relPath))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal not allowed")
	}
	return absPath, nil
}

// SongURL is the URL a stored upload is streamed from
func (fs *fileService) SongURL(file *types.AudioFile) string {
	return UploadURLPrefix + filepath.ToSlash(file.Path)
}

// ScanAudioFiles recursively scans a directory for audio files (WAV priority, MP3 fallback)
func (fs *fileService) ScanAudioFiles(rootPath string) ([]types.AudioFile, error) {
	var allFiles []types.AudioFile

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warnf("Error accessing path %s: %v", path, err)
			return nil // Continue walking, don't fail entire scan
		}
		if info.IsDir() || !IsAudioFile(path) {
			return nil
		}

		relativePath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relativePath = path
		}

		allFiles = append(allFiles, types.AudioFile{
			Filename: OriginalName(info.Name()),
			Path:     relativePath,
			Size:     info.Size(),
			Format:   formatOf(path),
			Metadata: fs.ExtractAudioMetadata(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fs.applyWavPrioritization(allFiles), nil
}

// applyWavPrioritization keeps the WAV copy when a track exists as both
// WAV and MP3
func (fs *fileService) applyWavPrioritization(files []types.AudioFile) []types.AudioFile {
	fileGroups := make(map[string][]types.AudioFile)
	for _, file := range files {
		basePath := strings.TrimSuffix(file.Path, filepath.Ext(file.Path))
		fileGroups[basePath] = append(fileGroups[basePath], file)
	}

	result := make([]types.AudioFile, 0, len(fileGroups))
	for _, group := range fileGroups {
		selected := group[0]
		for _, file := range group {
			if file.Format == "wav" {
				selected = file
				break
			}
		}
		result = append(result, selected)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// GetContentType returns the appropriate MIME type for an audio file
func (fs *fileService) GetContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// ExtractAudioMetadata reads tags from an audio file, falling back to the
// file name for missing fields
func (fs *fileService) ExtractAudioMetadata(filePath string) *types.AudioMetadata {
	file, err := os.Open(filePath)
	if err != nil {
		logger.Warnf("Could not open audio file %s: %v", filePath, err)
		return extractMetadataFromPath(filePath)
	}
	defer file.Close()

	// WAV files rarely carry tags the library understands; that is not an error
	meta, err := tag.ReadFrom(file)
	if err != nil {
		logger.Debugf("No tag metadata in %s: %v", filePath, err)
		return extractMetadataFromPath(filePath)
	}

	metadata := &types.AudioMetadata{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
	}
	metadata.TrackNumber, _ = meta.Track()

	if metadata.Title == "" || metadata.Artist == "" || metadata.Album == "" {
		fallback := extractMetadataFromPath(filePath)
		if metadata.Title == "" {
			metadata.Title = fallback.Title
		}
		if metadata.Artist == "" {
			metadata.Artist = fallback.Artist
		}
		if metadata.Album == "" {
			metadata.Album = fallback.Album
		}
	}
	return metadata
}

// extractMetadataFromPath derives metadata from Artist/Album/NN - Title.ext
func extractMetadataFromPath(filePath string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	parts := strings.Split(filepath.ToSlash(filePath), "/")
	filename := OriginalName(filepath.Base(filePath))

	if len(parts) >= 3 {
		metadata.Artist = parts[len(parts)-3]
	}
	if len(parts) >= 2 {
		metadata.Album = parts[len(parts)-2]
	}

	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if matches := trackNumberPrefix.FindStringSubmatch(title); len(matches) > 2 {
		title = matches[2]
		if trackNum, err := strconv.Atoi(matches[1]); err == nil {
			metadata.TrackNumber = trackNum
		}
	}
	metadata.Title = title
	return metadata
}

// ValidateFilePath checks for path traversal attempts and other security issues
func (fs *fileService) ValidateFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty path not allowed")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed")
	}
	return nil
}

func formatOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
