package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeImage = "image/"
	MimePDF   = "application/pdf"
	MimeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Judge0LanguageIDs 编程题语言到 Judge0 language_id 的映射
var Judge0LanguageIDs = map[string]int{
	"python":     71,
	"javascript": 93,
	"c++":        54,
	"c":          50,
	"java":       62,
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)
