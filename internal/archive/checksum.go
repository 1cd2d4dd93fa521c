package archive

// ChecksumEntry is the name of the archive entry holding per-file MD5
// sums. The layout matches the checksum.json produced by earlier backup
// tooling so archives stay comparable across versions.
const ChecksumEntry = "checksum.json"

// Extension is the file extension of produced archives.
const Extension = ".tar.zst"

type checksumManifest struct {
	Checksums map[string]string `json:"checksums"`
}
