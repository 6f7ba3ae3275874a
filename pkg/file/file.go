package file

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/LeoCommon/odometer/pkg/log"
	"go.uber.org/zap"
)

var (
	ErrPathIsDir  = errors.New("supplied path is a directory")
	ErrPathIsFile = errors.New("supplied path is a file")
)

// CreateFileP Creates a file and all its directories
// Make sure you close the file when using this function!
func CreateFileP(filePath string, perm fs.FileMode) (*os.File, error) {
	absDirPath, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(absDirPath, perm)
	if err != nil {
		return nil, err
	}

	return os.Create(filePath)
}

// WriteAtomic replaces filePath with data. The data is written to a temporary
// file next to the target, synced and renamed over it, so readers either see
// the old or the new content.
func WriteAtomic(filePath string, data []byte) error {
	tmpPath := filePath + ".tmp"

	f, err := CreateFileP(tmpPath, 0750)
	if err != nil {
		return err
	}

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return MoveFile(tmpPath, filePath)
}

// AppendTo appends data to filePath, creating it if needed
func AppendTo(filePath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return err
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	// Close the file when done
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	_, err = f.Write(data)
	return err
}

func addFileToZip(absFilePath string, writer *zip.Writer) error {
	// Open the source file for reading
	srcFile, err := os.Open(absFilePath)
	if err != nil {
		return err
	}

	defer func(srcFile *os.File) {
		_ = srcFile.Close()
	}(srcFile)

	zipFileWriter, err := writer.Create(filepath.Base(absFilePath))
	if err != nil {
		return err
	}

	// Copy the file contents to the zip
	_, err = io.Copy(zipFileWriter, srcFile)
	return err
}

func verifyZipArchive(archivePath string, addedFiles []string) error {
	zf, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}

	defer func(zf *zip.ReadCloser) {
		_ = zf.Close()
	}(zf)

	// go through each file that should be in the zip archive, check if it is there and if it has the right size
	sizes := make(map[string]uint64, len(zf.File))
	for _, fileZip := range zf.File {
		sizes[fileZip.Name] = fileZip.UncompressedSize64
	}

	for _, fileIn := range addedFiles {
		size, ok := sizes[filepath.Base(fileIn)]
		if !ok {
			return fmt.Errorf("file %s missing in archive", fileIn)
		}

		fileInSize, err := GetFileSize(fileIn)
		if err != nil {
			return err
		}

		if uint64(fileInSize) != size {
			log.Error("File was not written properly!", zap.Int("rawSize", fileInSize), zap.Uint64("zip.UncompressedSize64", size))
			return fmt.Errorf("file %s was not written properly", fileIn)
		}
	}

	return nil
}

// CreateArchive packs the files flat into a zip archive and verifies the result
func CreateArchive(archivePath string, filesToAdd []string) error {
	if filepath.Ext(archivePath) != ".zip" {
		archivePath += ".zip"
	}

	// Create all files and directories
	archive, err := CreateFileP(archivePath, 0750)
	if err != nil {
		log.Error("Error creating archive", zap.String("file", archivePath))
		return err
	}

	// Close the file later
	defer func(archive *os.File) {
		_ = archive.Close()
	}(archive)

	// Create a new zip writer
	zipWriter := zip.NewWriter(archive)

	// Add all files to zip
	for _, file := range filesToAdd {
		if err := addFileToZip(file, zipWriter); err != nil {
			log.Error("error in addFileToZip", zap.Error(err))
			// don't return, since zipWriter is not yet closed. (can't use defer, otherwise verify would fail)
		}
	}

	err = zipWriter.Close()
	if err != nil {
		log.Error("error while closing zip file writer", zap.Error(err))
		return err
	}

	// Verify all files are written completely (via size)
	return verifyZipArchive(archivePath, filesToAdd)
}

func MoveFile(sourcePath string, destPath string) error {
	return os.Rename(sourcePath, destPath)
}

func Info(path string) (fs.FileInfo, error) {
	s, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func Exists(path string) error {
	s, err := Info(path)
	if err != nil {
		return err
	}

	if s.IsDir() {
		return ErrPathIsDir
	}

	return nil
}

func IsDir(path string) error {
	s, err := Info(path)
	if err != nil {
		return err
	}

	if !s.IsDir() {
		return ErrPathIsFile
	}

	return nil
}

func GetFileSize(filePath string) (int, error) {
	theFile, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	fileSize := int(theFile.Size())
	return fileSize, nil
}
