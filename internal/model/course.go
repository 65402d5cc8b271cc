package model

type Complexity string

const (
	Junior Complexity = "junior"
	Middle Complexity = "middle"
	Senior Complexity = "senior"
)

// swagger:model Course
type Course struct {
	CatalogModel
	Name        string     `gorm:"size:250;not null" json:"name"`
	Complexity  Complexity `gorm:"size:20;not null" json:"complexity"`
	Description string     `gorm:"type:text" json:"description"`
	BannerImage string     `gorm:"size:255" json:"bannerImage"`
	Lessons     []Lesson   `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Lesson
type Lesson struct {
	CatalogModel
	CourseID     uint        `gorm:"not null;uniqueIndex:idx_lesson_course_serial" json:"courseId"`
	Title        string      `gorm:"size:250;not null" json:"title"`
	MaxScore     int         `gorm:"not null" json:"maxScore"`
	SerialNumber int         `gorm:"not null;uniqueIndex:idx_lesson_course_serial" json:"serialNumber"`
	Material     string      `gorm:"size:255" json:"material,omitempty"`
	Components   []Component `gorm:"foreignKey:LessonID" json:"components,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// AutoCreditedScore 视频和文本组件不需要提交，开始课时即计入分数
func (l *Lesson) AutoCreditedScore() int {
	total := 0
	for _, c := range l.Components {
		if !c.Kind.Graded() {
			total += c.MaxScore
		}
	}
	return total
}
