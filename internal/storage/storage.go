package storage

import "context"

// Uploader stores a binary artifact under a fresh key and returns the
// public URL other pipeline steps and clients can fetch it from. Uploads
// are append-only; a key is never written twice.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	case "model/gltf-binary":
		return ".glb"
	default:
		return ".bin"
	}
}
