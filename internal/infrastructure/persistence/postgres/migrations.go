// Package postgres implements the PostgreSQL persistence layer for Bonus Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

-- Main students table. Statistics are a snapshot of the external stats feed
-- and are stored as JSONB because the metric set evolves with the curriculum.
CREATE TABLE IF NOT EXISTS students (
    id BIGINT PRIMARY KEY,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    profession VARCHAR(10) NOT NULL DEFAULT 'NA',
    started_at TIMESTAMP WITH TIME ZONE,
    statistics JSONB NOT NULL DEFAULT '{}'::jsonb,
    points INTEGER NOT NULL DEFAULT 0,
    last_login TIMESTAMP WITH TIME ZONE,
    bonuses_last_visited TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Balance must never go negative; purchases check this atomically.
    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_id CHECK (id > 0)
);

CREATE INDEX IF NOT EXISTS idx_students_profession ON students(profession);
CREATE INDEX IF NOT EXISTS idx_students_points ON students(points DESC);

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create challenge catalog and completion tables
-- Version: 002

-- Challenge catalog reconciled from the external feed. The id is the feed's
-- own identifier, so reconciliation is a plain upsert.
CREATE TABLE IF NOT EXISTS challenges (
    id VARCHAR(100) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    profession VARCHAR(10) NOT NULL DEFAULT 'ALL',
    rule TEXT NOT NULL,
    value INTEGER NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_value CHECK (value > 0)
);

CREATE INDEX IF NOT EXISTS idx_challenges_active ON challenges(is_active) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_challenges_profession ON challenges(profession);

-- One row per awarded challenge. Value is frozen at completion time so that
-- later catalog edits do not rewrite history.
CREATE TABLE IF NOT EXISTS student_challenges (
    id SERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    challenge_id VARCHAR(100) NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    value INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, challenge_id)
);

CREATE INDEX IF NOT EXISTS idx_student_challenges_student ON student_challenges(student_id);
CREATE INDEX IF NOT EXISTS idx_student_challenges_challenge ON student_challenges(challenge_id);

DROP TRIGGER IF EXISTS update_challenges_updated_at ON challenges;
CREATE TRIGGER update_challenges_updated_at
    BEFORE UPDATE ON challenges
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration002Down = `
DROP TRIGGER IF EXISTS update_challenges_updated_at ON challenges;
DROP TABLE IF EXISTS student_challenges;
DROP TABLE IF EXISTS challenges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PRODUCTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create product catalog and purchase tables
-- Version: 003

CREATE TABLE IF NOT EXISTS products (
    id VARCHAR(100) PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    value INTEGER NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_product_value CHECK (value > 0)
);

CREATE INDEX IF NOT EXISTS idx_products_active ON products(is_active) WHERE is_active;

-- Purchase log. Repeat purchases of the same product are allowed, so there is
-- no uniqueness constraint on (student_id, product_id).
CREATE TABLE IF NOT EXISTS student_products (
    id SERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    product_id VARCHAR(100) NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    added_by VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_student_products_student ON student_products(student_id);
CREATE INDEX IF NOT EXISTS idx_student_products_created ON student_products(created_at DESC);

DROP TRIGGER IF EXISTS update_products_updated_at ON products;
CREATE TRIGGER update_products_updated_at
    BEFORE UPDATE ON products
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration003Down = `
DROP TRIGGER IF EXISTS update_products_updated_at ON products;
DROP TABLE IF EXISTS student_products;
DROP TABLE IF EXISTS products;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create achievement grants table
-- Version: 004

-- Achievements are recomputed from statistics, so a re-grant simply refreshes
-- earned_at instead of failing on the unique constraint.
CREATE TABLE IF NOT EXISTS achievements (
    id SERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    type VARCHAR(50) NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    picture VARCHAR(100) NOT NULL DEFAULT '',
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE(student_id, type)
);

CREATE INDEX IF NOT EXISTS idx_achievements_student ON achievements(student_id);
CREATE INDEX IF NOT EXISTS idx_achievements_earned_at ON achievements(earned_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS achievements;
`
