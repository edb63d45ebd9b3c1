// Package utils collects small filesystem and download helpers shared by
// the registry client, the store materializer, and the CLI boundary.
package utils

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadFile fetches url into filename, sending an If-None-Match header
// when etag is non-empty. Returns the response's ETag (or the caller's own
// etag unchanged on a 304), the HTTP status code, and any error. Writes go
// through a temp file and an atomic rename so a failed download never
// leaves a partial file at filename.
func DownloadFile(url, filename string, etag string) (string, int, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return etag, resp.StatusCode, nil
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("HTTP error: %s, %d %s", url, resp.StatusCode, resp.Status)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to create directory structure: %w", err)
	}

	tempFile := filename + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(file, resp.Body)
	file.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", resp.StatusCode, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", resp.StatusCode, fmt.Errorf("failed to finalize download: %w", err)
	}

	return resp.Header.Get("ETag"), resp.StatusCode, nil
}

// CreateDir creates dirPath if it doesn't already exist.
func CreateDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
		}
	}
	return nil
}

// FolderExists reports whether dirPath exists and is a directory.
func FolderExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// ValidateTarball reports whether filePath exists, is non-empty, and opens
// as a valid gzip stream.
func ValidateTarball(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil || fileInfo.Size() == 0 {
		return false
	}

	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return false
	}
	defer gzr.Close()

	return true
}
