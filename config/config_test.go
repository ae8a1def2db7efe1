package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.ComplianceHour != 9 || cfg.InactivityHour != 12 {
		t.Errorf("hours = %d/%d, want 9/12", cfg.ComplianceHour, cfg.InactivityHour)
	}
	if cfg.TicketPurgeDelay != 10*time.Second {
		t.Errorf("TicketPurgeDelay = %v", cfg.TicketPurgeDelay)
	}

	yt := cfg.PlatformRules["youtube"]
	if yt.MinWeeklyVideos != 3 || yt.MinWeeklyStreamHours != 5 {
		t.Errorf("youtube rules = %+v", yt)
	}
	tw := cfg.PlatformRules["twitch"]
	if tw.MinWeeklyVideos != 0 || tw.MinWeeklyStreamHours != 10 {
		t.Errorf("twitch rules = %+v", tw)
	}
	tk := cfg.PlatformRules["tiktok"]
	if tk.MinWeeklyVideos != 7 || tk.MinWeeklyStreamHours != 0 {
		t.Errorf("tiktok rules = %+v", tk)
	}

	if cfg.Credits.VideoUpload != 10 || cfg.Credits.StreamHour != 5 ||
		cfg.Credits.GoalAchievement != 50 || cfg.Credits.WeeklyBonus != 25 {
		t.Errorf("credit awards = %+v", cfg.Credits)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("COMPLIANCE_HOUR", "6")
	t.Setenv("CREDITS_VIDEO_UPLOAD", "20")
	t.Setenv("ADMIN_ROLE_IDS", "r1, r2,")
	t.Setenv("PLATFORM_RULES", `{"youtube":{"min_weekly_videos":1,"min_weekly_stream_hours":2}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.StoreBackend != "memory" {
		t.Errorf("addr=%q backend=%q", cfg.HTTPAddr, cfg.StoreBackend)
	}
	if cfg.ComplianceHour != 6 {
		t.Errorf("ComplianceHour = %d", cfg.ComplianceHour)
	}
	if cfg.Credits.VideoUpload != 20 {
		t.Errorf("VideoUpload = %d", cfg.Credits.VideoUpload)
	}
	if len(cfg.AdminRoles) != 2 || cfg.AdminRoles[0] != "r1" || cfg.AdminRoles[1] != "r2" {
		t.Errorf("AdminRoles = %v", cfg.AdminRoles)
	}
	if len(cfg.PlatformRules) != 1 {
		t.Errorf("PLATFORM_RULES override should replace defaults: %v", cfg.PlatformRules)
	}
	if got := cfg.PlatformRules["youtube"]; got.MinWeeklyVideos != 1 || got.MinWeeklyStreamHours != 2 {
		t.Errorf("youtube rules = %+v", got)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PLATFORM_RULES", "{not json")
	if _, err := Load(); err == nil {
		t.Error("invalid PLATFORM_RULES should fail")
	}
	t.Setenv("PLATFORM_RULES", "")
	t.Setenv("COMPLIANCE_HOUR", "24")
	if _, err := Load(); err == nil {
		t.Error("out-of-range COMPLIANCE_HOUR should fail")
	}
}

func TestHasRole(t *testing.T) {
	roleSet := []string{"admin", "mod"}
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"match", []string{"viewer", "mod"}, true},
		{"no match", []string{"viewer"}, false},
		{"empty caller", nil, false},
		{"empty set", []string{"admin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := roleSet
			if tt.name == "empty set" {
				set = nil
			}
			if got := HasRole(tt.roles, set); got != tt.want {
				t.Errorf("HasRole(%v, %v) = %v, want %v", tt.roles, set, got, tt.want)
			}
		})
	}
}
