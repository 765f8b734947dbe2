/*
Package writer handles Twicorder's on-disk output: newline-delimited JSON
files, plain or gzip-compressed, selected by file extension.

Plain extensions are txt, json, yaml and twc; compressed extensions are gzip,
zip and twzip. Anything else is rejected so a typo in save_postfix fails
loudly instead of producing unreadable captures. Paths may start with ~ and
parent directories are created on demand. Files are only ever appended to.
*/
package writer
