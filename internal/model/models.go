package model

// All 需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Lesson{},
		&Component{},
		&ComponentOption{},
		&CodingTest{},
		&UserCourse{},
		&UserLesson{},
		&UserComponent{},
		&Certificate{},
		&CodingSubmission{},
	}
}
