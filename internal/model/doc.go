// Package model defines the core domain models used throughout the application.
package model
